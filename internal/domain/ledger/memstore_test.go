package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

type upload struct {
	name, mime, folder string
}

// memStore is an in-memory row store with the remote store's positional
// semantics: rows are 1-based with the header as row 1.
type memStore struct {
	mu      sync.Mutex
	sheets  map[string][][]string
	uploads []upload
	reads   map[string]int
	calls   []string

	uploadErr error
	noURL     bool
	fail      map[string]error
	// onRead runs under the lock before the n-th read of sheet is served.
	onRead func(sheet string, n int)
}

func newMemStore() *memStore {
	return &memStore{
		sheets: map[string][][]string{},
		reads:  map[string]int{},
		fail:   map[string]error{},
	}
}

func (m *memStore) ReadAll(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["read:"+sheet]; err != nil {
		return nil, err
	}
	m.reads[sheet]++
	if m.onRead != nil {
		m.onRead(sheet, m.reads[sheet])
	}
	return copyRows(m.sheets[sheet]), nil
}

func (m *memStore) AppendRow(_ context.Context, sheet string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["append"]; err != nil {
		return err
	}
	m.calls = append(m.calls, "append "+sheet)
	m.sheets[sheet] = append(m.sheets[sheet], append([]string(nil), values...))
	return nil
}

func (m *memStore) UpdateCell(_ context.Context, sheet string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["update"]; err != nil {
		return err
	}
	rows := m.sheets[sheet]
	if row < 1 || row > len(rows) || col < 1 {
		return errors.Errorf("no cell %d,%d", row, col)
	}
	for len(rows[row-1]) < col {
		rows[row-1] = append(rows[row-1], "")
	}
	rows[row-1][col-1] = value
	m.calls = append(m.calls, fmt.Sprintf("update %d %d %s", row, col, value))
	return nil
}

func (m *memStore) DeleteRow(_ context.Context, sheet string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["delete"]; err != nil {
		return err
	}
	rows := m.sheets[sheet]
	if row < 2 || row > len(rows) {
		return errors.Errorf("no row %d", row)
	}
	m.sheets[sheet] = append(rows[:row-1], rows[row:]...)
	m.calls = append(m.calls, fmt.Sprintf("delete %d", row))
	return nil
}

func (m *memStore) UploadAsset(_ context.Context, _, fileName, mimeType, folderID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploads = append(m.uploads, upload{name: fileName, mime: mimeType, folder: folderID})
	if m.noURL {
		return "", nil
	}
	return fmt.Sprintf("https://drive.google.com/file/d/UP%d/view", len(m.uploads)), nil
}

func (m *memStore) rows(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.sheets[sheet])
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
