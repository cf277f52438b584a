package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/txbuilder"
)

// Mode selects where the private key lives and who produces signatures.
type Mode string

const (
	// ModeClient signs locally with key material held by this process.
	ModeClient Mode = "client"
	// ModeServer delegates signing to a remote signing service.
	ModeServer Mode = "server"
	// ModeEnclave delegates signing to a hardware enclave; the key never
	// leaves it.
	ModeEnclave Mode = "enclave"
)

// Decrypter unwraps encrypted key material for client-mode signing.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ExternalSigner produces a signature for a serialized message without
// exposing key material. Server and enclave modes use this.
type ExternalSigner interface {
	SignMessage(ctx context.Context, message []byte) (signature []byte, signer solana.PublicKey, err error)
}

// AuditRecord is written for every signing invocation, successful or not.
type AuditRecord struct {
	ID          string    `json:"id"`
	Mode        Mode      `json:"mode"`
	Signer      string    `json:"signer"`
	ContentHash string    `json:"content_hash"`
	Nonce       uint64    `json:"nonce"`
	Success     bool      `json:"success"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Auditor receives signing audit records. Implementations must not block the
// signing path on slow sinks.
type Auditor interface {
	RecordSigning(ctx context.Context, rec AuditRecord)
}

// Config for the signing service.
type Config struct {
	Mode Mode

	// ExpectedSigner is the public key every signature must verify against.
	// A mismatch is a hard failure in every mode.
	ExpectedSigner solana.PublicKey

	// EncryptedKey is the client-mode key material. When Decrypter is nil it
	// is treated as the raw 64-byte ed25519 private key.
	EncryptedKey []byte
	Decrypter    Decrypter

	// External handles server and enclave modes.
	External ExternalSigner

	Auditor Auditor
	Logger  *logrus.Logger
}

// Service signs built transactions according to the configured mode.
type Service struct {
	cfg Config
	log *logrus.Logger
}

func New(cfg Config) (*Service, error) {
	switch cfg.Mode {
	case ModeClient:
		if len(cfg.EncryptedKey) == 0 {
			return nil, fmt.Errorf("signing: client mode requires key material")
		}
	case ModeServer, ModeEnclave:
		if cfg.External == nil {
			return nil, fmt.Errorf("signing: %s mode requires an external signer", cfg.Mode)
		}
	default:
		return nil, fmt.Errorf("signing: unknown mode %q", cfg.Mode)
	}
	if cfg.ExpectedSigner.IsZero() {
		return nil, fmt.Errorf("signing: expected signer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Service{cfg: cfg, log: cfg.Logger}, nil
}

// Sign produces a fully signed transaction for a built transaction. Stale
// transactions are refused before any key material is touched.
func (s *Service) Sign(ctx context.Context, bt *txbuilder.BuiltTransaction) (*solana.Transaction, error) {
	if bt == nil {
		return nil, fmt.Errorf("signing: nil transaction")
	}
	if bt.Stale() {
		err := fmt.Errorf("signing: transaction is stale, rebuild required")
		s.audit(ctx, bt, false, err.Error())
		return nil, err
	}
	if !bt.Payer.Equals(s.cfg.ExpectedSigner) {
		err := fmt.Errorf("signing: payer %s does not match expected signer %s", bt.Payer, s.cfg.ExpectedSigner)
		s.audit(ctx, bt, false, err.Error())
		return nil, err
	}

	tx, err := bt.Transaction()
	if err != nil {
		s.audit(ctx, bt, false, err.Error())
		return nil, err
	}

	switch s.cfg.Mode {
	case ModeClient:
		err = s.signLocal(ctx, tx)
	case ModeServer, ModeEnclave:
		err = s.signExternal(ctx, tx)
	}
	if err != nil {
		s.audit(ctx, bt, false, err.Error())
		return nil, err
	}

	s.audit(ctx, bt, true, "")
	return tx, nil
}

// signLocal decrypts key material into a scratch buffer, signs, and zeroes
// every copy before returning.
func (s *Service) signLocal(ctx context.Context, tx *solana.Transaction) error {
	material := s.cfg.EncryptedKey
	if s.cfg.Decrypter != nil {
		decrypted, err := s.cfg.Decrypter.Decrypt(ctx, s.cfg.EncryptedKey)
		if err != nil {
			return fmt.Errorf("signing: decrypt key material: %w", err)
		}
		material = decrypted
		defer zero(decrypted)
	}

	scratch := make([]byte, len(material))
	copy(scratch, material)
	defer zero(scratch)

	priv := solana.PrivateKey(scratch)
	if !priv.PublicKey().Equals(s.cfg.ExpectedSigner) {
		return fmt.Errorf("signing: key material does not match expected signer %s", s.cfg.ExpectedSigner)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.cfg.ExpectedSigner) {
			return &priv
		}
		return nil
	}); err != nil {
		return fmt.Errorf("signing: sign transaction: %w", err)
	}
	return nil
}

func (s *Service) signExternal(ctx context.Context, tx *solana.Transaction) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("signing: serialize message: %w", err)
	}

	sigBytes, signer, err := s.cfg.External.SignMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("signing: external signer: %w", err)
	}
	if !signer.Equals(s.cfg.ExpectedSigner) {
		return fmt.Errorf("signing: external signer returned key %s, expected %s", signer, s.cfg.ExpectedSigner)
	}
	if len(sigBytes) != 64 {
		return fmt.Errorf("signing: external signature is %d bytes, expected 64", len(sigBytes))
	}

	var sig solana.Signature
	copy(sig[:], sigBytes)

	if !signer.Verify(message, sig) {
		return fmt.Errorf("signing: external signature failed verification")
	}

	tx.Signatures = []solana.Signature{sig}
	return nil
}

func (s *Service) audit(ctx context.Context, bt *txbuilder.BuiltTransaction, success bool, reason string) {
	rec := AuditRecord{
		ID:          uuid.NewString(),
		Mode:        s.cfg.Mode,
		Signer:      s.cfg.ExpectedSigner.String(),
		ContentHash: bt.ContentHash,
		Nonce:       bt.Nonce,
		Success:     success,
		Reason:      reason,
		At:          time.Now().UTC(),
	}
	if s.cfg.Auditor != nil {
		s.cfg.Auditor.RecordSigning(ctx, rec)
	}

	entry := s.log.WithFields(logrus.Fields{
		"audit_id":     rec.ID,
		"mode":         rec.Mode,
		"content_hash": rec.ContentHash,
		"nonce":        rec.Nonce,
	})
	if success {
		entry.Info("transaction signed")
	} else {
		entry.WithField("reason", reason).Warn("signing refused")
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
