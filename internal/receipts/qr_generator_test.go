package receipts

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/models"
)

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := ciphertext[:aes.BlockSize]
	data := ciphertext[aes.BlockSize:]
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, data)
	return data, nil
}

func sampleTicket() models.Ticket {
	return models.Ticket{
		RoundID:     "r1",
		Number:      42,
		Status:      models.TicketSold,
		OwnerID:     "alice",
		PurchasedAt: time.Now().UTC(),
	}
}

func TestGenerateTicketQRProducesPNG(t *testing.T) {
	gen := NewQRGenerator("gate-secret")

	png, err := gen.GenerateTicketQR(sampleTicket())
	require.NoError(t, err)
	require.NotEmpty(t, png)

	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestEncryptedPayloadRoundTrips(t *testing.T) {
	gen := NewQRGenerator("gate-secret")
	ticket := sampleTicket()

	data, err := json.Marshal(ticket)
	require.NoError(t, err)

	encrypted, err := encryptAES(data, gen.secret)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "alice", "payload must not leak plaintext")

	decrypted, err := decryptAES(encrypted, gen.secret)
	require.NoError(t, err)

	var decoded models.Ticket
	require.NoError(t, json.Unmarshal(decrypted, &decoded))
	assert.Equal(t, ticket.RoundID, decoded.RoundID)
	assert.Equal(t, ticket.Number, decoded.Number)
	assert.Equal(t, ticket.OwnerID, decoded.OwnerID)
}

func TestDifferentSecretCannotRead(t *testing.T) {
	gen := NewQRGenerator("gate-secret")
	other := NewQRGenerator("wrong-secret")

	data, err := json.Marshal(sampleTicket())
	require.NoError(t, err)

	encrypted, err := encryptAES(data, gen.secret)
	require.NoError(t, err)

	garbled, err := decryptAES(encrypted, other.secret)
	require.NoError(t, err)

	var decoded models.Ticket
	assert.Error(t, json.Unmarshal(garbled, &decoded))
}
