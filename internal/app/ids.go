package app

import (
	"strings"

	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.NewString()
}

func claimURL(baseURL, rawToken string) string {
	return strings.TrimRight(baseURL, "/") + "/claim/" + rawToken
}
