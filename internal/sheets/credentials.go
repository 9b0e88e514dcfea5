package sheets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const DefaultCredentialsPath = "google_credentials.json"

// EnsureCredentialsFile makes sure the Google service-account file exists on
// disk and returns its path. Resolution order:
//  1. an existing file (GOOGLE_CREDENTIALS_FILE or the default path)
//  2. GOOGLE_CREDENTIALS_JSON holding the raw JSON
//  3. GOOGLE_CREDENTIALS_BASE64 holding base64 of the JSON
//
// The JSON is validated before it is written so a mangled env var fails here
// rather than deep inside the Sheets handshake.
func EnsureCredentialsFile(destination string) (string, error) {
	dest := strings.TrimSpace(destination)
	if dest == "" {
		dest = strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_FILE"))
	}
	if dest == "" {
		dest = DefaultCredentialsPath
	}

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	rawJSON := os.Getenv("GOOGLE_CREDENTIALS_JSON")
	if rawJSON == "" {
		if b64 := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_BASE64")); b64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return "", fmt.Errorf("unable to decode GOOGLE_CREDENTIALS_BASE64: %w", err)
			}
			rawJSON = string(decoded)
		}
	}

	if rawJSON == "" {
		return "", fmt.Errorf(
			"credentials file %q not found; set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_BASE64", dest)
	}

	if !json.Valid([]byte(rawJSON)) {
		return "", fmt.Errorf("GOOGLE_CREDENTIALS_JSON is not valid JSON")
	}

	if err := os.WriteFile(dest, []byte(rawJSON), 0o600); err != nil {
		return "", fmt.Errorf("unable to write credentials file: %w", err)
	}
	return dest, nil
}

func readCredentials(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}
	return b, nil
}
