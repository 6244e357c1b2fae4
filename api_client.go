package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const apiRequestTimeout = 15 * time.Second

var apiUserAgent = minerSoftwareName + "/" + minerVersion

// TermsResponse is the terms-and-conditions payload; Message is the exact
// string a wallet must sign to register.
type TermsResponse struct {
	Version string `json:"version"`
	Content string `json:"content"`
	Message string `json:"message"`
}

type RegistrationReceipt struct {
	Preimage  string `json:"preimage"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
}

type RegisterResponse struct {
	RegistrationReceipt RegistrationReceipt `json:"registrationReceipt"`
}

type CryptoReceipt struct {
	Preimage  string `json:"preimage"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
}

type SubmitResponse struct {
	CryptoReceipt *CryptoReceipt `json:"crypto_receipt"`
	StatusCode    int            `json:"statusCode"`
	Message       string         `json:"message"`
}

type DonateResponse struct {
	Status                string `json:"status"`
	Message               string `json:"message"`
	DonationID            string `json:"donation_id"`
	OriginalAddress       string `json:"original_address"`
	DestinationAddress    string `json:"destination_address"`
	Timestamp             string `json:"timestamp"`
	SolutionsConsolidated uint64 `json:"solutions_consolidated"`
	Error                 string `json:"error"`
}

// apiClient talks to the challenge server. It carries no retry logic; the
// mining loop is the retry policy.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: apiRequestTimeout},
	}
}

// GetChallenge fetches the current challenge descriptor.
func (c *apiClient) GetChallenge(ctx context.Context) (*ChallengeResponse, error) {
	var out ChallengeResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/challenge", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTerms fetches the terms and conditions, optionally a pinned version.
func (c *apiClient) GetTerms(ctx context.Context, version string) (*TermsResponse, error) {
	u := c.baseURL + "/TandC"
	if version != "" {
		u += "/" + url.PathEscape(version)
	}
	var out TermsResponse
	if err := c.do(ctx, http.MethodGet, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterAddress registers a wallet address with a signed terms message.
func (c *apiClient) RegisterAddress(ctx context.Context, address, signature, pubkey string) (*RegisterResponse, error) {
	u := fmt.Sprintf("%s/register/%s/%s/%s", c.baseURL,
		url.PathEscape(address), url.PathEscape(signature), url.PathEscape(pubkey))
	var out RegisterResponse
	if err := c.do(ctx, http.MethodPost, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitSolution posts a mined nonce for a challenge.
func (c *apiClient) SubmitSolution(ctx context.Context, address, challengeID, nonce string) (*SubmitResponse, error) {
	u := fmt.Sprintf("%s/solution/%s/%s/%s", c.baseURL,
		url.PathEscape(address), url.PathEscape(challengeID), url.PathEscape(nonce))
	logger.Info("submitting solution", "address", address, "challenge_id", challengeID, "nonce", nonce)
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DonateTo assigns a wallet's accumulated rights to a destination address.
func (c *apiClient) DonateTo(ctx context.Context, destination, original, signature string) (*DonateResponse, error) {
	u := fmt.Sprintf("%s/donate_to/%s/%s/%s", c.baseURL,
		url.PathEscape(destination), url.PathEscape(original), url.PathEscape(signature))
	logger.Info("submitting donation assignment", "from", original, "to", destination)
	var out DonateResponse
	if err := c.do(ctx, http.MethodPost, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) do(ctx context.Context, method, u string, out any) error {
	var body io.Reader
	if method == http.MethodPost {
		body = bytes.NewReader([]byte("{}"))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", apiUserAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s failed: status %d: %s", method, u, resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := fastJSONUnmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, u, err)
	}
	return nil
}
