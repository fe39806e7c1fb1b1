package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"sync"

	"evolveai/config"

	log "github.com/sirupsen/logrus"
)

var once sync.Once
var instance *Cipher

// Cipher 对落库的个人字段做静态加密。
// 密钥缺失时退化为明文直通，只打一次告警，不阻断业务
type Cipher struct {
	gcm cipher.AEAD
}

func GetInstance() *Cipher {
	once.Do(func() {
		key := os.Getenv(config.EnvEncryptionKey)
		if key == "" {
			log.Warn("encryption key is not set, personal fields will be stored as plaintext")
			instance = &Cipher{}
			return
		}

		// 任意长度的密钥串先过一遍哈希，得到 32 字节的 AES-256 密钥
		sum := sha256.Sum256([]byte(key))
		block, err := aes.NewCipher(sum[:])
		if err != nil {
			panic("init cipher error: " + err.Error())
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			panic("init cipher error: " + err.Error())
		}
		instance = &Cipher{gcm: gcm}
	})
	return instance
}

func NewCipher(key string) (*Cipher, error) {
	if key == "" {
		return &Cipher{}, nil
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	return &Cipher{gcm: gcm}, nil
}

func (c *Cipher) Enabled() bool {
	return c.gcm != nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c.gcm == nil || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解不开的值原样返回，兼容加密开启前落库的明文
func (c *Cipher) Decrypt(ciphertext string) string {
	if c.gcm == nil || ciphertext == "" {
		return ciphertext
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < c.gcm.NonceSize() {
		return ciphertext
	}

	nonce, sealed := raw[:c.gcm.NonceSize()], raw[c.gcm.NonceSize():]
	plaintext, err := c.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ciphertext
	}
	return string(plaintext)
}
