package password

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BreachChecker reports whether a password appears in a breach corpus
type BreachChecker interface {
	IsCompromised(ctx context.Context, password string) (bool, error)
}

// BreachClient queries a k-anonymity range API in the format served by
// api.pwnedpasswords.com: GET {baseURL}/{first 5 hex of SHA-1} returns
// SUFFIX:COUNT lines.
type BreachClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewBreachClient creates a client for the range API at baseURL
func NewBreachClient(baseURL string, timeout time.Duration, log *zap.Logger) *BreachClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &BreachClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// HashParts returns the upper-case SHA-1 hex of password split into the
// 5 character prefix sent to the API and the 35 character suffix kept local.
func HashParts(password string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(password))
	full := strings.ToUpper(hex.EncodeToString(sum[:]))
	return full[:5], full[5:]
}

// IsCompromised returns an error when the lookup could not be completed
func (c *BreachClient) IsCompromised(ctx context.Context, password string) (bool, error) {
	prefix, suffix := HashParts(password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build breach lookup request: %w", err)
	}
	req.Header.Set("User-Agent", "ku-polls")
	req.Header.Set("Add-Padding", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("breach lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("breach lookup returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		candidate, count, _ := strings.Cut(line, ":")
		if !strings.EqualFold(candidate, suffix) {
			continue
		}
		// padding entries carry a count of zero
		if n, err := strconv.Atoi(strings.TrimSpace(count)); err == nil && n == 0 {
			continue
		}
		return true, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read breach lookup response: %w", err)
	}

	c.log.Debug("Breach lookup finished",
		zap.String("prefix", prefix))
	return false, nil
}
