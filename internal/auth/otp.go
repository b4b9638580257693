package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
)

const (
	keyNamespace = "shopeasy"
	otpPrefix    = "otp"

	fieldHash     = "hash"
	fieldAttempts = "attempts"
)

var errOTPInvalid = apperrors.New(apperrors.CodeOTPInvalid, "code is invalid or expired")

// OTPStore keeps one pending code per phone. Codes are stored as bcrypt hashes and
// expire with their key.
type OTPStore struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxAttempts int
}

func NewOTPStore(rdb redis.Cmdable, ttl time.Duration, maxAttempts int) *OTPStore {
	return &OTPStore{rdb: rdb, ttl: ttl, maxAttempts: maxAttempts}
}

func otpKey(phone string) string {
	return keyNamespace + ":" + otpPrefix + ":" + phone
}

// Save replaces any pending code for phone and resets its attempt counter.
func (s *OTPStore) Save(ctx context.Context, phone, code string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	key := otpKey(phone)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldHash, string(hash), fieldAttempts, 0)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return apperrors.Infrastructure(err, "store otp")
	}
	return nil
}

// claimAttempt spends one attempt and returns {hash, attempts used}, or nil when no
// code is pending. A code whose budget is already spent is deleted.
var claimAttempt = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local used = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
if used > tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1])
	return false
end
return {redis.call('HGET', KEYS[1], ARGV[3]), used}
`)

// Verify consumes the pending code when it matches. Every guess counts against the
// attempt budget before the code is compared; once the budget is spent the code is
// discarded. Only the caller whose delete removes the key is logged in.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) error {
	key := otpKey(phone)
	res, err := claimAttempt.Run(ctx, s.rdb, []string{key}, fieldAttempts, s.maxAttempts, fieldHash).Slice()
	if errors.Is(err, redis.Nil) {
		return errOTPInvalid
	}
	if err != nil {
		return apperrors.Infrastructure(err, "claim otp attempt")
	}
	if len(res) != 2 {
		return fmt.Errorf("claim otp attempt: unexpected reply %v", res)
	}

	hash, _ := res[0].(string)
	used, _ := res[1].(int64)
	if hash == "" {
		_ = s.rdb.Del(ctx, key).Err()
		return errOTPInvalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("compare otp: %w", err)
		}
		if int(used) >= s.maxAttempts {
			_ = s.rdb.Del(ctx, key).Err()
		}
		return errOTPInvalid
	}

	removed, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return apperrors.Infrastructure(err, "consume otp")
	}
	if removed == 0 {
		return errOTPInvalid
	}
	return nil
}

// GenerateCode returns a uniformly random numeric code of the given length.
func GenerateCode(length int) (string, error) {
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
