package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoPendingCheckout = errors.New("session: no pending checkout")
	ErrPendingExpired    = errors.New("session: pending checkout expired")
	ErrTokenInvalid      = errors.New("session: auth token invalid")
	ErrTokenExpired      = errors.New("session: auth token expired")
)

// DefaultPendingTTL is how long a hosted-checkout handoff stays resumable.
const DefaultPendingTTL = 10 * time.Minute

// PendingCheckout is the state stashed before navigating away to a hosted
// checkout page, recovered when the redirect callback comes back.
type PendingCheckout struct {
	BookingID string
	UnitID    string
	StoredAt  time.Time
}

// Store holds one guest session's persisted surface: auth token, the last
// connected wallet address, any pending hosted checkout, and the month the
// calendar was left on. Read-mostly; every privileged action revalidates
// rather than trusting what is here.
type Store struct {
	mu         sync.RWMutex
	token      string
	phone      string
	walletAddr string
	pending    *PendingCheckout
	monthOff   int
	pendingTTL time.Duration
	clock      func() time.Time
}

func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{pendingTTL: DefaultPendingTTL, clock: clock}
}

func (s *Store) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the stored auth token after checking expiry. Malformed or
// expired tokens are cleared, mirroring how a stale session must re-login.
func (s *Store) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ErrTokenInvalid
	}
	if err := checkTokenExpiry(s.token, s.clock()); err != nil {
		s.token = ""
		return "", err
	}
	return s.token, nil
}

func (s *Store) SetPhoneNumber(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = phone
}

func (s *Store) PhoneNumber() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phone
}

func (s *Store) SetWalletAddress(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walletAddr = addr
}

func (s *Store) WalletAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletAddr
}

func (s *Store) SetMonthOffset(off int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthOff = off
}

func (s *Store) MonthOffset() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monthOff
}

func (s *Store) SetPendingCheckout(bookingID, unitID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &PendingCheckout{BookingID: bookingID, UnitID: unitID, StoredAt: s.clock()}
}

// TakePendingCheckout returns and clears the pending handoff. Entries older
// than the TTL are discarded: a guest coming back from checkout after ten
// minutes starts over instead of resuming a stale draft.
func (s *Store) TakePendingCheckout() (PendingCheckout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingCheckout{}, ErrNoPendingCheckout
	}
	p := *s.pending
	s.pending = nil
	if s.clock().Sub(p.StoredAt) > s.pendingTTL {
		return PendingCheckout{}, ErrPendingExpired
	}
	return p, nil
}

// checkTokenExpiry does the minimal JWT inspection needed here: three
// dot-separated parts and an unexpired exp claim. Signature verification
// belongs to the identity service, not here.
func checkTokenExpiry(token string, now time.Time) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrTokenInvalid
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ErrTokenInvalid
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return ErrTokenInvalid
	}
	if claims.Exp != 0 && claims.Exp < now.Unix() {
		return ErrTokenExpired
	}
	return nil
}
