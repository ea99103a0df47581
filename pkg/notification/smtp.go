package notification

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SMTPConfig SMTP configuration
type SMTPConfig struct {
	Host     string
	Port     int64
	Username string
	Password string
	From     string
}

// SMTPClient SMTP email client
type SMTPClient struct {
	Config SMTPConfig
}

// NewSMTPClient creates SMTP client instance
func NewSMTPClient(config SMTPConfig) *SMTPClient {
	return &SMTPClient{
		Config: config,
	}
}

// Mail is one outgoing message. Attachment is a file path streamed as base64.
type Mail struct {
	To         []string
	Subject    string
	Body       string
	HTML       bool
	Attachment string
}

// Send delivers m and returns a tracking id.
func (s *SMTPClient) Send(ctx context.Context, m Mail) (string, error) {
	addr := net.JoinHostPort(s.Config.Host, fmt.Sprint(s.Config.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: s.Config.Host}
	// Port 465 is implicit TLS, everything else upgrades with STARTTLS when offered.
	if s.Config.Port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}
	client, err := smtp.NewClient(conn, s.Config.Host)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if s.Config.Port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err = client.StartTLS(tlsConfig); err != nil {
				return "", fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}
	if s.Config.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.Host)
			if err = client.Auth(auth); err != nil {
				return "", fmt.Errorf("failed to authenticate: %w", err)
			}
		}
	}

	if err = client.Mail(s.Config.From); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	for _, to := range m.To {
		if err = client.Rcpt(to); err != nil {
			return "", fmt.Errorf("failed to set recipient: %w", err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("failed to prepare data: %w", err)
	}
	if err = writeMessage(w, s.Config.From, m); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write email content: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("failed to write email content: %w", err)
	}
	client.Quit()

	// SMTP doesn't return a messageID, so we generate one for tracking
	return fmt.Sprintf("smtp-%d", time.Now().UnixNano()), nil
}

// writeMessage writes a multipart/mixed MIME message.
func writeMessage(w io.Writer, from string, m Mail) error {
	mw := multipart.NewWriter(w)
	header := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=%q\r\n\r\n",
		from, strings.Join(m.To, ", "), mime.QEncoding.Encode("utf-8", m.Subject), mw.Boundary())
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	contentType := "text/plain; charset=utf-8"
	if m.HTML {
		contentType = "text/html; charset=utf-8"
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return err
	}
	if _, err = io.WriteString(part, m.Body); err != nil {
		return err
	}

	if m.Attachment != "" {
		if err = writeAttachment(mw, m.Attachment); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeAttachment(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return err
	}
	lines := &lineWriter{w: part}
	enc := base64.NewEncoder(base64.StdEncoding, lines)
	if _, err = io.Copy(enc, f); err != nil {
		return err
	}
	if err = enc.Close(); err != nil {
		return err
	}
	return lines.Close()
}

// lineWriter wraps base64 output at 76 columns.
type lineWriter struct {
	w   io.Writer
	col int
}

func (l *lineWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := 76 - l.col
		if n > len(p) {
			n = len(p)
		}
		if _, err := l.w.Write(p[:n]); err != nil {
			return written, err
		}
		written += n
		l.col += n
		p = p[n:]
		if l.col == 76 {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}
			l.col = 0
		}
	}
	return written, nil
}

func (l *lineWriter) Close() error {
	if l.col > 0 {
		_, err := io.WriteString(l.w, "\r\n")
		return err
	}
	return nil
}
