// Package signing attests server responses with the Ethereum-compatible
// wallet of the server, so clients can check which server computed a
// result.
package signing

import (
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ErrTypeInvalidKey       = "invalid_private_key"
	ErrTypeInvalidSignature = "invalid_signature"
)

// Signer signs payloads with a server private key. A nil Signer signs
// nothing.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}
}

// LoadPrivateKey reads a hex encoded private key, either given directly or
// from a file. Both empty returns a nil key.
func LoadPrivateKey(privateKey, privateKeyFile string) (*ecdsa.PrivateKey, error) {
	if privateKey != "" && privateKeyFile != "" {
		return nil, errors.New("have to specify either private key or private key file, not both").
			WithType(ErrTypeInvalidKey)
	}

	if privateKeyFile != "" {
		b, err := os.ReadFile(privateKeyFile)
		if err != nil {
			return nil, errors.New("error loading private key from file").
				WithType(ErrTypeInvalidKey).
				WithTag("file_name", privateKeyFile).
				Wrap(err)
		}
		privateKey = string(b)
	}

	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")
	if privateKey == "" {
		return nil, nil
	}

	key, err := crypto.HexToECDSA(privateKey)
	if err != nil {
		return nil, errors.New("error decoding private key").
			WithType(ErrTypeInvalidKey).
			Wrap(err)
	}
	return key, nil
}

// Address returns the lower case hex wallet address of the signer.
func (s *Signer) Address() string {
	if s == nil {
		return ""
	}
	return s.address
}

// Sign returns the hex encoded signature of the Keccak256 hash of data.
func (s *Signer) Sign(data []byte) (string, error) {
	if s == nil {
		return "", nil
	}

	sig, err := crypto.Sign(crypto.Keccak256Hash(data).Bytes(), s.key)
	if err != nil {
		return "", errors.New("signing failed").Wrap(err)
	}
	return hexutil.Encode(sig), nil
}

// Recover returns the lower case wallet address that produced signature
// over data.
func Recover(data []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", errors.New("decoding signature failed").
			WithType(ErrTypeInvalidSignature).
			Wrap(err)
	}

	pub, err := crypto.SigToPub(crypto.Keccak256Hash(data).Bytes(), sig)
	if err != nil {
		return "", errors.New("recovering public key failed").
			WithType(ErrTypeInvalidSignature).
			Wrap(err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
