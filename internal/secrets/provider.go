package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/hypernova-labs/tiss-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Provider entrega o material de chave usado pelo cofre de certificados.
// É construído explicitamente e injetado em cada componente; não há
// estado global de segredos.
type Provider interface {
	// EncryptionKey retorna a chave AEAD de 32 bytes
	EncryptionKey() ([]byte, error)
}

// EnvProvider deriva a chave a partir da configuração carregada do
// ambiente: aceita 32 bytes crus, base64 de 32 bytes, ou qualquer outra
// string (hasheada para 32 bytes, com aviso no log)
type EnvProvider struct {
	raw    string
	logger *logrus.Logger

	key []byte
}

// NewEnvProvider cria um provider a partir do valor bruto configurado
func NewEnvProvider(raw string, logger *logrus.Logger) *EnvProvider {
	return &EnvProvider{raw: raw, logger: logger}
}

// EncryptionKey resolve e memoriza a chave de 32 bytes
func (p *EnvProvider) EncryptionKey() ([]byte, error) {
	if p.key != nil {
		return p.key, nil
	}

	if p.raw == "" {
		return nil, models.NewConfigurationError("vault encryption key not configured", nil)
	}

	if len(p.raw) == 32 {
		p.key = []byte(p.raw)
		return p.key, nil
	}

	if decoded, err := base64.StdEncoding.DecodeString(p.raw); err == nil && len(decoded) == 32 {
		p.key = decoded
		return p.key, nil
	}

	// Fallback: derivar por hash. Nunca logar a chave, só a impressão digital.
	sum := sha256.Sum256([]byte(p.raw))
	p.key = sum[:]
	p.logger.WithField("key_fingerprint", Fingerprint(p.key)).
		Warn("Vault encryption key is not 32 bytes, deriving via SHA-256")

	return p.key, nil
}

// Fingerprint retorna uma impressão digital de tamanho fixo de um
// segredo, segura para aparecer em logs
func Fingerprint(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:8])
}
