package notifications

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SignedCopy is a sealed document sent to the parties of a signature.
type SignedCopy struct {
	Recipients    []string
	SignerName    string
	DocumentTitle string
	FileName      string
	PDF           []byte
	DocumentURL   string
	// AllParties marks the copy sent when every signatory of a process has signed.
	AllParties bool
}

// SigningLink invites a signatory to sign.
type SigningLink struct {
	Email         string
	Name          string
	DocumentTitle string
	Token         string
	Reminder      bool
}

// Dispatcher composes signing emails and hands them to a Mailer.
type Dispatcher struct {
	mailer       Mailer
	publicAppURL string
	logger       *zap.Logger
}

func NewDispatcher(mailer Mailer, publicAppURL string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:       mailer,
		publicAppURL: strings.TrimRight(publicAppURL, "/"),
		logger:       logger,
	}
}

// SendSignedCopy emails the sealed PDF to each distinct recipient.
func (d *Dispatcher) SendSignedCopy(ctx context.Context, msg SignedCopy) error {
	to := uniqueEmails(msg.Recipients)
	if len(to) == 0 {
		return nil
	}

	title := msg.DocumentTitle
	if title == "" {
		title = "Convention de formation"
	}
	subject := fmt.Sprintf("Document signé : %s", title)
	var body strings.Builder
	body.WriteString("Bonjour,\n\n")
	if msg.AllParties {
		fmt.Fprintf(&body, "Le document « %s » a été signé par toutes les parties.\n", title)
	} else {
		fmt.Fprintf(&body, "Le document « %s » a été signé par %s.\n", title, msg.SignerName)
	}
	body.WriteString("Vous trouverez la copie signée en pièce jointe.\n")
	if msg.DocumentURL != "" {
		fmt.Fprintf(&body, "\nElle est également disponible ici : %s\n", msg.DocumentURL)
	}
	body.WriteString("\nCordialement.\n")

	email := &Email{To: to, Subject: subject, Body: body.String()}
	if len(msg.PDF) > 0 {
		name := msg.FileName
		if name == "" {
			name = "document_signe.pdf"
		}
		email.Attachments = []Attachment{{Name: name, Data: msg.PDF, ContentType: "application/pdf"}}
	}
	return d.mailer.Send(ctx, email)
}

// SendSigningLink emails the link a signatory uses to sign.
func (d *Dispatcher) SendSigningLink(ctx context.Context, msg SigningLink) error {
	if strings.TrimSpace(msg.Email) == "" {
		return fmt.Errorf("signatory has no email")
	}

	title := msg.DocumentTitle
	if title == "" {
		title = "Convention de formation"
	}
	subject := fmt.Sprintf("Signature requise : %s", title)
	if msg.Reminder {
		subject = "Rappel - " + subject
	}

	name := msg.Name
	if name == "" {
		name = "Madame, Monsieur"
	}
	body := fmt.Sprintf("Bonjour %s,\n\nVotre signature est attendue sur le document « %s ».\n"+
		"Pour signer, ouvrez le lien suivant :\n%s\n\nCordialement.\n",
		name, title, d.SigningURL(msg.Token))

	return d.mailer.Send(ctx, &Email{To: []string{msg.Email}, Subject: subject, Body: body})
}

// SigningURL is the public page where token is redeemed.
func (d *Dispatcher) SigningURL(token string) string {
	return d.publicAppURL + "/sign/" + token
}

func uniqueEmails(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		key := strings.ToLower(e)
		if e == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
