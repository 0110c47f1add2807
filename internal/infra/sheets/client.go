// Package sheets talks to the spreadsheet web-app endpoint that holds the
// ledger. It carries no business logic.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const maxBodySize = 32 << 20

type Client struct {
	endpoint    string
	containerID string
	http        *http.Client
	log         logrus.FieldLogger
}

func New(endpoint, containerID string, httpClient *http.Client, log logrus.FieldLogger) *Client {
	return &Client{
		endpoint:    endpoint,
		containerID: containerID,
		http:        httpClient,
		log:         log,
	}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	FileURL string          `json:"fileUrl"`
}

// ReadAll returns every row of sheet as text cells. Row 0 is the header.
func (c *Client) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	const op = "read"
	values := url.Values{}
	values.Set("containerId", c.containerID)
	values.Set("sheet", sheet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	env, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	var raw [][]interface{}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	if len(env.Data) == 0 || dec.Decode(&raw) != nil {
		return nil, &MalformedResponseError{Op: op, ContentType: "application/json", Snippet: snippet(env.Data)}
	}

	rows := make([][]string, len(raw))
	for i, r := range raw {
		rows[i] = make([]string, len(r))
		for j, v := range r {
			rows[i][j] = cellString(v)
		}
	}
	c.log.WithFields(logrus.Fields{"op": op, "sheet": sheet, "rows": len(rows)}).Debug("sheets: read")
	return rows, nil
}

func (c *Client) AppendRow(ctx context.Context, sheet string, values []string) error {
	rowData, err := json.Marshal(values)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("action", "insert")
	form.Set("sheetName", sheet)
	form.Set("rowData", string(rowData))
	_, err = c.post(ctx, "insert", form)
	if err == nil {
		c.log.WithFields(logrus.Fields{"op": "insert", "sheet": sheet}).Debug("sheets: row appended")
	}
	return err
}

// UpdateCell writes one cell. row and col are 1-based, header row counted.
func (c *Client) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	form := url.Values{}
	form.Set("action", "updateCell")
	form.Set("sheetName", sheet)
	form.Set("rowIndex", strconv.Itoa(row))
	form.Set("columnIndex", strconv.Itoa(col))
	form.Set("value", value)
	_, err := c.post(ctx, "updateCell", form)
	if err == nil {
		c.log.WithFields(logrus.Fields{"op": "updateCell", "sheet": sheet, "row": row, "col": col}).Debug("sheets: cell updated")
	}
	return err
}

// DeleteRow removes a row; rows below it shift up by one.
func (c *Client) DeleteRow(ctx context.Context, sheet string, row int) error {
	form := url.Values{}
	form.Set("action", "delete")
	form.Set("sheetName", sheet)
	form.Set("rowIndex", strconv.Itoa(row))
	_, err := c.post(ctx, "delete", form)
	if err == nil {
		c.log.WithFields(logrus.Fields{"op": "delete", "sheet": sheet, "row": row}).Debug("sheets: row deleted")
	}
	return err
}

// UploadAsset stores a base64 payload in folderID and returns the file URL
// reported by the store, which may be empty.
func (c *Client) UploadAsset(ctx context.Context, base64Data, fileName, mimeType, folderID string) (string, error) {
	form := url.Values{}
	form.Set("action", "uploadFile")
	form.Set("base64Data", base64Data)
	form.Set("fileName", fileName)
	form.Set("mimeType", mimeType)
	form.Set("folderId", folderID)
	env, err := c.post(ctx, "uploadFile", form)
	if err != nil {
		return "", err
	}
	c.log.WithFields(logrus.Fields{"op": "uploadFile", "file": fileName, "mime": mimeType}).Debug("sheets: asset uploaded")
	return strings.TrimSpace(env.FileURL), nil
}

func (c *Client) post(ctx context.Context, op string, form url.Values) (*envelope, error) {
	form.Set("containerId", c.containerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("op", op).Warn("sheets: request failed")
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.log.WithFields(logrus.Fields{"op": op, "status": resp.StatusCode}).Warn("sheets: non-2xx response")
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	contentType := resp.Header.Get("Content-Type")

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		c.log.WithFields(logrus.Fields{"op": op, "content_type": contentType}).Warn("sheets: non-JSON response")
		return nil, &MalformedResponseError{Op: op, ContentType: contentType, Snippet: snippet(trimmed)}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &MalformedResponseError{Op: op, ContentType: contentType, Snippet: snippet(trimmed), Err: err}
	}
	if env.Success == nil {
		return nil, &MalformedResponseError{Op: op, ContentType: contentType, Snippet: snippet(trimmed)}
	}
	if !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
