package sourcecache

import (
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/condaforge/condabuild/internal/diag"
)

// VerifySignature checks payloadPath against an armored detached PGP
// signature from the named signer's armored public key (spec §7's
// source errors name checksum mismatch; this is the optional PGP
// counterpart recipes can opt into with source.signature/pgp_key).
func VerifySignature(payloadPath, armoredSignature, armoredPublicKey string) error {
	data, err := os.ReadFile(payloadPath)
	if err != nil {
		return err
	}

	key, err := crypto.NewKeyFromArmored(armoredPublicKey)
	if err != nil {
		return diag.NewSourceError(diag.KindSignatureInvalid, fmt.Sprintf("parsing pgp_key: %v", err))
	}
	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return diag.NewSourceError(diag.KindSignatureInvalid, fmt.Sprintf("building pgp keyring: %v", err))
	}

	sig, err := crypto.NewPGPSignatureFromArmored(armoredSignature)
	if err != nil {
		return diag.NewSourceError(diag.KindSignatureInvalid, fmt.Sprintf("parsing signature: %v", err))
	}

	if err := keyRing.VerifyDetached(crypto.NewPlainMessage(data), sig, crypto.GetUnixTime()); err != nil {
		return diag.NewSourceError(diag.KindSignatureInvalid, fmt.Sprintf("signature verification failed for %s: %v", payloadPath, err))
	}
	return nil
}
