package test

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/polkiloo/plotcatalog/internal/domain/model"
)

const asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomASCIIString returns a pseudo-random ASCII string within the provided bounds.
// When maxLen equals minLen the resulting string always has that exact length.
func RandomASCIIString(minLen, maxLen int) string {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length := minLen
	if maxLen > minLen {
		length += int(randomIntn(maxLen - minLen + 1))
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = asciiLetters[randomIntn(len(asciiLetters))]
	}
	return string(buf)
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}

const digits = "0123456789"

// RandomCustomer returns a customer that passes validation.
func RandomCustomer() model.Customer {
	phone := make([]byte, 9)
	for i := range phone {
		phone[i] = digits[randomIntn(len(digits))]
	}
	login := strings.ToLower(RandomASCIIString(6, 12))
	return model.Customer{
		FirstName: RandomASCIIString(3, 10),
		LastName:  RandomASCIIString(3, 12),
		Phone:     "+255" + string(phone),
		Email:     login + "@example.com",
	}
}
