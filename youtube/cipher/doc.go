/*
Package cipher turns obfuscated stream signatures into playable ones.

Signatures are deciphered by reading the transform plan out of the player
script with regular expressions. The plan is a sequence of three primitive
operations applied to the signature runes:

  - reverse: reverse the whole slice
  - splice N: drop the first N runes
  - swap N: exchange rune 0 with rune N modulo length

The script is never executed. When the plan cannot be extracted the package
returns a structured *Error instead of guessing; such errors match
errs.ErrCipherFailed with errors.Is.

# Usage

	p := cipher.NewPlayer(client.New())
	jsURL, err := p.URL(ctx, videoID)
	if err != nil {
		return err
	}
	sig, err := p.Decipher(ctx, jsURL, signature)
	if err != nil {
		if cipher.IsNotFound(err) {
			// player layout changed
		}
		return err
	}

# Caching

Downloaded player scripts are kept for PlayerJSTTL. Extracted plans are kept
for as long as the script they came from.

# Error Codes

  - PLAYER_JS_NOT_FOUND: player.js URL not found in the video page
  - PLAYER_JS_DOWNLOAD_FAILED: the video page or player.js could not be fetched
  - SIGNATURE_INVALID: empty signature
  - SIGNATURE_NOT_FOUND: no decipher function in player.js
  - TRANSFORM_NOT_FOUND: the helper object holding the transforms is missing
  - TRANSFORM_UNSUPPORTED: the decipher function uses an unknown statement
*/
package cipher
