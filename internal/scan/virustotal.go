package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const defaultVirusTotalBase = "https://www.virustotal.com/api/v3"

var ErrScanUnavailable = errors.New("scan service unavailable")

// Verdict summarizes one completed URL analysis.
type Verdict struct {
	AnalysisID string
	Malicious  int
	Suspicious int
	Harmless   int
}

func (v Verdict) Safe() bool {
	return v.Malicious == 0 && v.Suspicious == 0
}

// VirusTotal submits URLs for analysis and polls the result. A client with
// no API key is disabled and reports ErrScanUnavailable.
type VirusTotal struct {
	apiKey    string
	baseURL   string
	client    *retryablehttp.Client
	logger    *zap.Logger
	pollDelay time.Duration
}

func NewVirusTotal(apiKey string, logger *zap.Logger) *VirusTotal {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &VirusTotal{
		apiKey:    apiKey,
		baseURL:   defaultVirusTotalBase,
		client:    client,
		logger:    logger,
		pollDelay: 5 * time.Second,
	}
}

func (v *VirusTotal) Enabled() bool {
	return v.apiKey != ""
}

// ScanURL submits the target, waits out the analysis delay, and returns the
// verdict. Blocks for the poll delay at minimum.
func (v *VirusTotal) ScanURL(ctx context.Context, target string) (Verdict, error) {
	if !v.Enabled() {
		return Verdict{}, ErrScanUnavailable
	}

	analysisID, err := v.submit(ctx, target)
	if err != nil {
		return Verdict{}, err
	}

	select {
	case <-ctx.Done():
		return Verdict{}, ctx.Err()
	case <-time.After(v.pollDelay):
	}

	return v.analysis(ctx, analysisID)
}

func (v *VirusTotal) submit(ctx context.Context, target string) (string, error) {
	form := url.Values{"url": {target}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-apikey", v.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: submit status %d", ErrScanUnavailable, resp.StatusCode)
	}

	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode submit response: %v", ErrScanUnavailable, err)
	}
	if body.Data.ID == "" {
		return "", fmt.Errorf("%w: empty analysis id", ErrScanUnavailable)
	}
	return body.Data.ID, nil
}

func (v *VirusTotal) analysis(ctx context.Context, analysisID string) (Verdict, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/analyses/"+analysisID, nil)
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("x-apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrScanUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("%w: analysis status %d", ErrScanUnavailable, resp.StatusCode)
	}

	var body struct {
		Data struct {
			Attributes struct {
				Stats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
					Harmless   int `json:"harmless"`
				} `json:"stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode analysis response: %v", ErrScanUnavailable, err)
	}

	return Verdict{
		AnalysisID: analysisID,
		Malicious:  body.Data.Attributes.Stats.Malicious,
		Suspicious: body.Data.Attributes.Stats.Suspicious,
		Harmless:   body.Data.Attributes.Stats.Harmless,
	}, nil
}
