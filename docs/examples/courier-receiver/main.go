// Platerelay Courier Receiver Example
//
// This is a minimal example of a transport adapter that receives signed
// deliveries from Platerelay and forwards them to plate owners. A real
// adapter would call the chat platform's send-message API; this one just
// logs what it would send.
//
// Usage:
//   export PLATERELAY_COURIER_SECRET="your_secret_here"
//   go run main.go
//
// Then point the Platerelay server at it: COURIER_URL=http://your-server:9000/deliver

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Delivery is the payload Platerelay posts for each relayed message.
type Delivery struct {
	DeliveryID      string `json:"delivery_id"`
	RecipientChatID int64  `json:"recipient_chat_id"`
	Text            string `json:"text"`
}

func main() {
	secret := os.Getenv("PLATERELAY_COURIER_SECRET")
	if secret == "" {
		log.Fatal("PLATERELAY_COURIER_SECRET environment variable is required")
	}

	http.HandleFunc("/deliver", deliverHandler(secret))
	http.HandleFunc("/health", healthHandler)

	log.Println("Starting courier receiver on :9000")
	log.Println("Endpoint: http://localhost:9000/deliver")
	log.Fatal(http.ListenAndServe(":9000", nil))
}

func deliverHandler(secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("Error reading body: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		signature := r.Header.Get("X-Platerelay-Signature")
		timestamp := r.Header.Get("X-Platerelay-Timestamp")
		if signature == "" || timestamp == "" {
			log.Println("Missing signature headers")
			http.Error(w, "Missing signature", http.StatusUnauthorized)
			return
		}

		if !verifySignature(signature, timestamp, body, secret) {
			log.Println("Invalid signature")
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		var d Delivery
		if err := json.Unmarshal(body, &d); err != nil {
			log.Printf("Error parsing JSON: %v", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		// A real adapter sends d.Text to chat d.RecipientChatID here.
		log.Printf("✓ Delivery %s for chat %d", d.DeliveryID, d.RecipientChatID)
		log.Printf("  Text: %s", d.Text)

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "delivered"})
	}
}

// verifySignature verifies the HMAC-SHA256 signature from Platerelay.
//
// Signed payload: {timestamp}.{body}
func verifySignature(signature, timestamp string, body []byte, secret string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}

	// ±5 min replay tolerance
	if math.Abs(float64(time.Now().Unix()-ts)) > 300 {
		log.Println("Signature timestamp too old or in future")
		return false
	}

	signedPayload := fmt.Sprintf("%d.%s", ts, string(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expected))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
