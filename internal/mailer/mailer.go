// Package mailer sends confirmation email over plain SMTP.  Sending is
// strictly best-effort: callers log failures and move on, because a
// lost email must never affect a settled booking.
package mailer

import (
    "bytes"
    "encoding/base64"
    "fmt"
    "mime/multipart"
    "net/smtp"
    "net/textproto"
)

// Attachment is a named binary part, e.g. a ticket QR PNG.
type Attachment struct {
    Filename    string
    ContentType string
    Data        []byte
}

// Mailer holds SMTP connection settings.  A Mailer with an empty Host
// is disabled: Send reports ErrDisabled so the caller can log and skip.
type Mailer struct {
    Host string
    Port string
    User string
    Pass string
}

// ErrDisabled is returned by Send when no SMTP host is configured.
var ErrDisabled = fmt.Errorf("mailer disabled: no SMTP host configured")

// New builds a Mailer from the given SMTP settings.
func New(host, port, user, pass string) *Mailer {
    return &Mailer{Host: host, Port: port, User: user, Pass: pass}
}

// Send delivers a plain-text message with optional attachments to a
// single recipient.  The MIME envelope is assembled by hand with
// multipart/mixed; attachments are base64 encoded.
func (m *Mailer) Send(to, subject, body string, attachments []Attachment) error {
    if m == nil || m.Host == "" {
        return ErrDisabled
    }

    var buf bytes.Buffer
    w := multipart.NewWriter(&buf)

    fmt.Fprintf(&buf, "From: %s\r\n", m.User)
    fmt.Fprintf(&buf, "To: %s\r\n", to)
    fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
    fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
    fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

    textHdr := textproto.MIMEHeader{}
    textHdr.Set("Content-Type", "text/plain; charset=\"UTF-8\"")
    part, err := w.CreatePart(textHdr)
    if err != nil {
        return err
    }
    if _, err := part.Write([]byte(body)); err != nil {
        return err
    }

    for _, a := range attachments {
        hdr := textproto.MIMEHeader{}
        hdr.Set("Content-Type", a.ContentType)
        hdr.Set("Content-Transfer-Encoding", "base64")
        hdr.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
        part, err := w.CreatePart(hdr)
        if err != nil {
            return err
        }
        enc := base64.StdEncoding.EncodeToString(a.Data)
        // wrap base64 lines at 76 chars per RFC 2045
        for len(enc) > 76 {
            if _, err := fmt.Fprintf(part, "%s\r\n", enc[:76]); err != nil {
                return err
            }
            enc = enc[76:]
        }
        if _, err := fmt.Fprintf(part, "%s\r\n", enc); err != nil {
            return err
        }
    }
    if err := w.Close(); err != nil {
        return err
    }

    addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
    auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
    if err := smtp.SendMail(addr, auth, m.User, []string{to}, buf.Bytes()); err != nil {
        return fmt.Errorf("failed to send mail: %v", err)
    }
    return nil
}
