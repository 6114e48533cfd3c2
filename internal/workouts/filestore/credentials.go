package filestore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	usersColumn     = "Users"
	passwordsColumn = "Passwords"
)

type credential struct {
	username string
	password string
}

// readCredentials parses login.csv. Columns are located by header name, so
// files that carry an extra leading index column are read as well.
func readCredentials(path string) ([]credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	usersIdx, passwordsIdx := -1, -1
	for i, col := range header {
		switch col {
		case usersColumn:
			usersIdx = i
		case passwordsColumn:
			passwordsIdx = i
		}
	}
	if usersIdx < 0 || passwordsIdx < 0 {
		return nil, fmt.Errorf("login file %s: missing %s/%s columns", path, usersColumn, passwordsColumn)
	}

	var creds []credential
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) <= usersIdx || len(row) <= passwordsIdx {
			continue
		}
		creds = append(creds, credential{
			username: row[usersIdx],
			password: row[passwordsIdx],
		})
	}

	return creds, nil
}

func encodeCredentials(creds []credential) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{usersColumn, passwordsColumn}); err != nil {
		return nil, err
	}
	for _, c := range creds {
		if err := w.Write([]string{c.username, c.password}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
