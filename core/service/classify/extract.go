// Package classify implements the Feature Extractor (spec §4.D) and a
// bundled default Classifier (spec §4.C).
package classify

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	out "mailsieve/core/port/out"
)

const e5Prefix = "passage: "

// Extractor derives structured features from a raw RFC 5322 message. The
// self-addresses configured here decide Role (spec §4.D): substring
// matching on the raw To/Cc header text, case-insensitive, no address
// parsing — the false positive this causes when a self-address appears
// inside a display name is documented and intentional (spec §9 open
// question: "do not guess intent").
type Extractor struct {
	selfAddresses []string // lower-cased
}

// NewExtractor builds an Extractor for the given self-addresses (MY_EMAIL).
func NewExtractor(selfAddresses []string) *Extractor {
	lowered := make([]string, len(selfAddresses))
	for i, a := range selfAddresses {
		lowered[i] = strings.ToLower(strings.TrimSpace(a))
	}
	return &Extractor{selfAddresses: lowered}
}

// Extract parses a raw message into Features.
func (x *Extractor) Extract(raw []byte) (out.Features, error) {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return out.Features{}, fmt.Errorf("parse message: %w", err)
	}

	from := msg.Header.Get("From")
	to := msg.Header.Get("To")
	cc := msg.Header.Get("Cc")
	subject := msg.Header.Get("Subject")
	massMail := msg.Header.Get("List-Unsubscribe") != ""

	role := x.determineRole(to, cc)

	body, attachmentKinds, err := extractBodyAndAttachments(msg.Header.Get("Content-Type"), msg.Body)
	if err != nil {
		return out.Features{}, fmt.Errorf("extract body: %w", err)
	}

	return out.Features{
		Role:            role,
		MassMail:        massMail,
		AttachmentKinds: attachmentKinds,
		From:            from,
		To:              to,
		Cc:              cc,
		Subject:         subject,
		Body:            body,
	}, nil
}

// determineRole matches original_source/email_classifier_brain/config.py's
// determine_role exactly: raw substring match against To then Cc.
func (x *Extractor) determineRole(to, cc string) string {
	toLower := strings.ToLower(to)
	for _, addr := range x.selfAddresses {
		if addr != "" && strings.Contains(toLower, addr) {
			return "Direct"
		}
	}
	ccLower := strings.ToLower(cc)
	for _, addr := range x.selfAddresses {
		if addr != "" && strings.Contains(ccLower, addr) {
			return "CC"
		}
	}
	return "Hidden"
}

// extractBodyAndAttachments walks a multipart message (or treats it as a
// single-part payload) the way classify.py's predict_raw_email does: first
// text/plain part wins the body, attachment parts contribute a
// deduplicated, order-preserving list of uppercase extension tags.
func extractBodyAndAttachments(contentType string, r io.Reader) (string, []string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		data, readErr := io.ReadAll(r)
		if readErr != nil {
			return "", nil, readErr
		}
		return decodeCharset(data, params["charset"]), nil, nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		data, readErr := io.ReadAll(r)
		if readErr != nil {
			return "", nil, readErr
		}
		return decodeCharset(data, params["charset"]), nil, nil
	}

	reader := multipart.NewReader(r, boundary)

	var body string
	var kinds []string
	seen := map[string]struct{}{}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return body, kinds, err
		}

		disposition := part.Header.Get("Content-Disposition")
		partType, partParams, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))

		if strings.Contains(strings.ToLower(disposition), "attachment") {
			ext := extensionTag(part.FileName(), partType)
			if ext != "" {
				if _, dup := seen[ext]; !dup {
					seen[ext] = struct{}{}
					kinds = append(kinds, ext)
				}
			}
			continue
		}

		if body == "" && partType == "text/plain" {
			data, err := io.ReadAll(part)
			if err != nil {
				return body, kinds, err
			}
			body = decodeCharset(data, partParams["charset"])
		}
	}

	return body, kinds, nil
}

// decodeCharset decodes data per the part's declared charset, falling back
// to UTF-8 (with replacement on invalid bytes) when the charset is absent
// or unrecognized — matching classify.py's payload.decode(charset,
// errors="replace").
func decodeCharset(data []byte, charset string) string {
	charset = strings.TrimSpace(charset)
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "us-ascii") {
		return strings.ToValidUTF8(string(data), "�")
	}
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(decoded)
}

// extensionTag uppercases a filename's extension, falling back to guessing
// from the MIME type when no filename is present.
func extensionTag(filename, mimeType string) string {
	if filename != "" {
		ext := strings.TrimPrefix(filepath.Ext(filename), ".")
		if ext != "" {
			return strings.ToUpper(ext)
		}
	}
	exts, _ := mime.ExtensionsByType(mimeType)
	if len(exts) > 0 {
		return strings.ToUpper(strings.TrimPrefix(exts[0], "."))
	}
	return ""
}

// FormatModelInput is the single shared formatter: byte-exact between
// training and inference (spec §4.D/§6), grounded on
// original_source/email_classifier_brain/config.py's format_model_input.
func FormatModelInput(f out.Features) string {
	massMailStr := "No"
	if f.MassMail {
		massMailStr = "Yes"
	}
	attachmentStr := "None"
	if len(f.AttachmentKinds) > 0 {
		attachmentStr = "[" + strings.Join(f.AttachmentKinds, ", ") + "]"
	}

	structured := fmt.Sprintf(
		"Role: %s | Mass Mail: %s | Attachment Types: %s | From: %s | To: %s | Subject: %s | Body: %s",
		f.Role, massMailStr, attachmentStr, f.From, f.To, f.Subject, f.Body,
	)
	return e5Prefix + structured
}
