package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewSheetsService builds a Sheets API client. Preference order:
//  1. GOOGLE_CREDENTIALS_JSON (service account key content)
//  2. GOOGLE_APPLICATION_CREDENTIALS (service account key file)
//  3. Application Default Credentials
func NewSheetsService(ctx context.Context) (*sheets.Service, error) {
	keyJSON := []byte(strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")))
	if len(keyJSON) == 0 {
		if path := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read service account key file: %w", err)
			}
			keyJSON = b
		}
	}

	if len(keyJSON) > 0 {
		jwtConfig, err := google.JWTConfigFromJSON(keyJSON, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		httpClient := oauth2.NewClient(ctx, jwtConfig.TokenSource(ctx))
		return sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	}

	return sheets.NewService(ctx, option.WithScopes(sheets.SpreadsheetsScope))
}

// SourceSpreadsheetID is the document holding the contract, invoice and receipt tables.
func SourceSpreadsheetID() string {
	return strings.TrimSpace(os.Getenv("SOURCE_SPREADSHEET_ID"))
}

// ExternalSpreadsheetID is the optional cross-document target for statements and overrides.
func ExternalSpreadsheetID() string {
	return strings.TrimSpace(os.Getenv("EXTERNAL_SPREADSHEET_ID"))
}

const (
	TableStoreSheets = "sheets"
	TableStoreXlsx   = "xlsx"
)

func TableStoreKind() string {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TABLE_STORE")), TableStoreXlsx) {
		return TableStoreXlsx
	}
	return TableStoreSheets
}

func SourceXlsxPath() string {
	return strings.TrimSpace(os.Getenv("SOURCE_XLSX"))
}

func ExternalXlsxPath() string {
	return strings.TrimSpace(os.Getenv("EXTERNAL_XLSX"))
}
