package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	seatExpiry       = 2 * time.Hour
	bcryptCost       = 12
	minPassphraseLen = 4
	secretSettingKey = "seat_secret"
)

var (
	ErrBadPassphrase = errors.New("wrong session passphrase")
	ErrInvalidSeat   = errors.New("invalid seat token")
)

// Seat is what a seat token proves: which vehicle in which session the bearer drives
type Seat struct {
	SessionID string
	VehicleID string
}

// Auth issues seat tokens for reconnects and checks private session passphrases
type Auth struct {
	secret []byte
	now    func() time.Time
}

// NewAuth creates an Auth. An empty secret is loaded from, or generated into, the database.
func NewAuth(db *DB, secret string, log zerolog.Logger) *Auth {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	} else {
		key = loadOrCreateSecret(db, log)
	}
	return &Auth{secret: key, now: time.Now}
}

// loadOrCreateSecret loads the signing secret from the database, or generates
// and persists a new one if none exists.
func loadOrCreateSecret(db *DB, log zerolog.Logger) []byte {
	if db != nil {
		if h := db.GetSetting(secretSettingKey); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate seat secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting(secretSettingKey, hex.EncodeToString(secret)); err != nil {
			log.Warn().Err(err).Msg("could not persist seat secret")
		}
	}
	return secret
}

// IssueSeat signs a token that lets the bearer reclaim vehicleID in sessionID
func (a *Auth) IssueSeat(sessionID, vehicleID string) (string, error) {
	now := a.now()
	claims := jwt.MapClaims{
		"sid": sessionID,
		"vid": vehicleID,
		"exp": now.Add(seatExpiry).Unix(),
		"iat": now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateSeat checks a seat token and returns the seat it grants
func (a *Auth) ValidateSeat(tokenStr string) (Seat, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return Seat{}, fmt.Errorf("%w: %v", ErrInvalidSeat, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Seat{}, ErrInvalidSeat
	}
	sid, ok1 := claims["sid"].(string)
	vid, ok2 := claims["vid"].(string)
	if !ok1 || !ok2 || sid == "" || vid == "" {
		return Seat{}, fmt.Errorf("%w: missing claims", ErrInvalidSeat)
	}
	return Seat{SessionID: sid, VehicleID: vid}, nil
}

// HashPassphrase bcrypt-hashes a private session passphrase
func HashPassphrase(pass string) ([]byte, error) {
	if len(pass) < minPassphraseLen {
		return nil, fmt.Errorf("passphrase must be at least %d characters", minPassphraseLen)
	}
	return bcrypt.GenerateFromPassword([]byte(pass), bcryptCost)
}

// CheckPassphrase compares a passphrase against a stored hash; a nil hash means public
func CheckPassphrase(hash []byte, pass string) error {
	if hash == nil {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(pass)); err != nil {
		return ErrBadPassphrase
	}
	return nil
}
