package service

import (
	"context"
	"errors"
	"testing"
)

func TestGenerateCodeReturnsFourDigits(t *testing.T) {
	code, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return false, nil
	})
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("code %q: want 4 characters", code)
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Fatalf("code %q: want digits only", code)
		}
	}
}

func TestGenerateCodeRetriesOnCollision(t *testing.T) {
	attempts := 0
	code, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		attempts++
		return attempts < 3, nil
	})
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts: got %d, want 3", attempts)
	}
	if code == "" {
		t.Error("expected a code after retries")
	}
}

func TestGenerateCodeExhausted(t *testing.T) {
	attempts := 0
	_, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		attempts++
		return true, nil
	})
	if !errors.Is(err, ErrCodeSpaceExhausted) {
		t.Fatalf("err: got %v, want ErrCodeSpaceExhausted", err)
	}
	if attempts != codeAttempts {
		t.Errorf("attempts: got %d, want %d", attempts, codeAttempts)
	}
}

func TestGenerateCodePropagatesStoreError(t *testing.T) {
	storeErr := errors.New("db down")
	_, err := generateCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return false, storeErr
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("err: got %v, want wrapped store error", err)
	}
}
