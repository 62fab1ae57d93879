package signing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trainhub/platform/signing-backend/internal/documents"
	"trainhub/platform/signing-backend/internal/evidence"
	"trainhub/platform/signing-backend/internal/notifications"
	"trainhub/platform/signing-backend/pkg/geospatial"
	"trainhub/platform/signing-backend/pkg/idempotency"
	"trainhub/platform/signing-backend/pkg/pdf"
	"trainhub/platform/signing-backend/pkg/security"
)

// User-facing messages.
const (
	msgMissingFields     = "Token et signature requis"
	msgAttestation       = "Vous devez certifier sur l'honneur être présent et accepter les conditions."
	msgMissingToken      = "Token manquant"
	msgInvalidLink       = "Lien invalide ou expiré"
	msgInProgress        = "Une signature est déjà en cours pour ce lien."
	msgAlreadySigned     = "Cette demande a déjà été signée."
	msgAlreadyAttended   = "Vous avez déjà émargé pour cette session."
	msgLinkExpired       = "Lien expiré"
	msgRequestExpired    = "Demande expirée"
	msgSessionClosed     = "Session d'émargement fermée"
	msgSessionExpired    = "Session d'émargement expirée"
	msgGeoRequired       = "La géolocalisation est requise pour émarger."
	msgGeoInvalid        = "Coordonnées de géolocalisation invalides."
	msgNoDocumentFile    = "Document sans fichier PDF"
	msgUnsupportedURL    = "URL du document non supportée"
	msgNoIntermediate    = "PDF intermédiaire indisponible"
	msgLoadDocument      = "Impossible de charger le document"
	msgLoadIntermediate  = "Impossible de charger le PDF intermédiaire"
	msgSealFailed        = "Erreur lors du scellement du document."
	msgUploadSigned      = "Erreur lors de l'enregistrement du document signé."
	msgUploadDocument    = "Erreur lors de l'enregistrement du document."
	msgSaveSignature     = "Erreur lors de l'enregistrement de la signature."
	msgSaveAttendance    = "Erreur lors de l'enregistrement de l'émargement."
	msgSaveProcess       = "Erreur lors de l'enregistrement de la preuve."
	msgSignatureDone     = "Signature enregistrée avec succès. Une copie vous a été envoyée par email."
	msgAttendanceDone    = "Votre présence est enregistrée."
	msgProcessStepDone   = "Signature enregistrée. Le prochain signataire va recevoir le lien par email."
	msgProcessFinalDone  = "Signature enregistrée. La convention a été signée par toutes les parties. Une copie vous a été envoyée par email."
	defaultSignerName    = "Signataire"
	defaultDocumentTitle = "Document"
)

// timestampLayout is the UTC ISO-8601 form stored in evidence metadata.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

const attendancePresent = "present"

const previewTTL = 15 * time.Minute

// SubmitInput is one signature submission. IP and UserAgent come from the
// transport, never from the client body.
type SubmitInput struct {
	Token         string
	SignatureData string
	Attestation   bool
	Fingerprint   string
	Geolocation   *security.Geolocation
	IP            string
	UserAgent     string
}

type SubmitResult struct {
	Type          Kind   `json:"type"`
	IntegrityHash string `json:"integrityHash"`
	Message       string `json:"message"`
}

// ProcessView is what a signatory sees before signing a process step.
type ProcessView struct {
	Process   *SigningProcess     `json:"process"`
	Signatory *Signatory          `json:"signatory"`
	Document  *documents.Document `json:"document,omitempty"`
	// PDFURL is a short-lived link to the PDF the signatory is about to sign.
	PDFURL string `json:"pdf_url,omitempty"`
}

type LookupResult struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

// Options tunes the service; zero values fall back to defaults.
type Options struct {
	LockTTL       time.Duration
	ReminderAfter time.Duration
	ReminderBatch int
	// Zones override document and template zones when set.
	Zones []pdf.Zone
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    Store
	Storage  *documents.StorageProvider
	Sealer   pdf.Sealer
	Hasher   *security.Hasher
	Guard    idempotency.Guard
	Notifier *notifications.Dispatcher
	Events   notifications.Publisher
	Logger   *zap.Logger
}

// Service completes signature, attendance and process submissions.
type Service struct {
	store    Store
	resolver *Resolver
	storage  *documents.StorageProvider
	sealer   pdf.Sealer
	hasher   *security.Hasher
	guard    idempotency.Guard
	notifier *notifications.Dispatcher
	events   notifications.Publisher
	logger   *zap.Logger
	opts     Options
	nowFn    func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.ReminderAfter <= 0 {
		opts.ReminderAfter = 72 * time.Hour
	}
	if opts.ReminderBatch <= 0 {
		opts.ReminderBatch = 100
	}
	events := deps.Events
	if events == nil {
		events = notifications.NopPublisher{}
	}
	return &Service{
		store:    deps.Store,
		resolver: NewResolver(deps.Store.Signing()),
		storage:  deps.Storage,
		sealer:   deps.Sealer,
		hasher:   deps.Hasher,
		guard:    deps.Guard,
		notifier: deps.Notifier,
		events:   events,
		logger:   deps.Logger,
		opts:     opts,
		nowFn:    time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.nowFn().UTC()
}

// Submit records a signature for the request addressed by in.Token.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	token := strings.TrimSpace(in.Token)
	payload := strings.TrimSpace(in.SignatureData)
	if token == "" || payload == "" {
		return nil, publicErr(ErrInvalidInput, msgMissingFields, nil)
	}
	if !in.Attestation {
		return nil, publicErr(ErrInvalidInput, msgAttestation, nil)
	}

	release, err := s.guard.Acquire(ctx, idempotency.HashKey(token), s.opts.LockTTL)
	if errors.Is(err, idempotency.ErrInFlight) {
		return nil, publicErr(ErrInProgress, msgInProgress, err)
	}
	if err != nil {
		return nil, dependencyErr(msgServerError, fmt.Errorf("acquire submission lock: %w", err))
	}
	defer release()

	res, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, dependencyErr(msgServerError, err)
	}

	now := s.now()
	md := security.Metadata{
		IP:           in.IP,
		UserAgent:    in.UserAgent,
		Fingerprint:  strings.TrimSpace(in.Fingerprint),
		TimestampUTC: now.Format(timestampLayout),
		Geolocation:  in.Geolocation,
	}

	switch res.Kind {
	case KindProcess:
		return s.completeProcess(ctx, res.Process, res.Signatory, payload, md, now)
	case KindSignature:
		return s.completeSignature(ctx, res.Signature, payload, md, now)
	case KindAttendance:
		return s.completeAttendance(ctx, res.Attendance, payload, md, now)
	default:
		return nil, publicErr(ErrNotFound, msgInvalidLink, nil)
	}
}

func (s *Service) completeSignature(ctx context.Context, req *SignatureRequest, payload string, md security.Metadata, now time.Time) (*SubmitResult, error) {
	if req.Status != StatusPending {
		return nil, publicErr(ErrAlreadySigned, msgAlreadySigned, nil)
	}
	if err := signatureExpiry(req, now); err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.String("signature_request_id", req.ID.String()))
	email := strings.TrimSpace(req.RecipientEmail)
	name := orDefault(req.RecipientName, defaultSignerName)

	doc, err := s.store.Documents().GetDocumentByID(ctx, req.DocumentID)
	if err != nil {
		return nil, dependencyErr(msgServerError, fmt.Errorf("load document %s: %w", req.DocumentID, err))
	}
	if doc != nil && doc.OrganizationID != req.OrganizationID {
		logger.Warn("Signature request points at a document of another organization",
			zap.String("document_id", doc.ID.String()),
			zap.String("organization_id", req.OrganizationID.String()))
		return nil, publicErr(ErrNotFound, msgInvalidLink, fmt.Errorf("document %s outside organization %s", doc.ID, req.OrganizationID))
	}

	var (
		sealed   *pdf.SealResult
		finalKey string
		finalURL string
	)
	if doc != nil && doc.FileURL != "" {
		if key, ok := s.storage.PathFromURL(doc.FileURL); ok {
			source, err := s.storage.Download(ctx, key)
			if err != nil {
				return nil, dependencyErr(msgSealFailed, fmt.Errorf("download %s: %w", key, err))
			}
			sealed, err = s.seal(ctx, doc, source, payload, pdf.DefaultZoneID, pdf.SealOptions{
				SignerName:  name,
				SignerEmail: email,
				SignedAt:    now,
				IP:          md.IP,
			})
			if err != nil {
				return nil, dependencyErr(msgSealFailed, err)
			}
			finalKey = documents.FinalKey(req.OrganizationID, doc.ID)
			finalURL, err = s.storage.UploadPDF(ctx, finalKey, sealed.SealedPDF)
			if err != nil {
				return nil, dependencyErr(msgUploadSigned, fmt.Errorf("upload %s: %w", finalKey, err))
			}
		} else {
			logger.Warn("Document file is outside the documents bucket, signing without sealing",
				zap.String("document_id", doc.ID.String()))
		}
	}

	hash := s.hasher.Sum(email, payload, md)
	evMeta := evidence.Metadata{Metadata: md}
	if sealed != nil {
		evMeta.PDFIntegrityHash = sealed.IntegrityHash
	}
	record := evidence.NewRecord(req.OrganizationID, evidence.RequestSignature, req.ID, email, payload, evMeta, hash)
	signature := &documents.Signature{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		DocumentID:     req.DocumentID,
		SignerID:       req.RequesterID,
		SignatureData:  payload,
		SignatureType:  "handwritten",
		SignerName:     name,
		SignerEmail:    email,
		Status:         string(StatusSigned),
		IsValid:        true,
		IPAddress:      md.IP,
		UserAgent:      md.UserAgent,
		SignedAt:       now,
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if sealed != nil {
			if err := tx.Documents().MarkSigned(ctx, req.OrganizationID, doc.ID, finalKey, finalURL, now); err != nil {
				return fmt.Errorf("mark document signed: %w", err)
			}
		}
		if err := tx.Documents().CreateSignature(ctx, signature); err != nil {
			return fmt.Errorf("create document signature: %w", err)
		}
		if err := tx.Signing().MarkSignatureRequestSigned(ctx, req.ID, signature.ID, now); err != nil {
			return fmt.Errorf("mark signature request signed: %w", err)
		}
		if err := tx.Evidence().Insert(ctx, record); err != nil {
			return fmt.Errorf("insert evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		if sealed != nil {
			s.compensate(ctx, finalKey, nil)
		}
		return nil, txFailure(err, msgAlreadySigned, msgSaveSignature)
	}

	result := &SubmitResult{Type: KindSignature, IntegrityHash: hash, Message: msgSignatureDone}
	if sealed != nil {
		result.IntegrityHash = sealed.IntegrityHash
		recipients := []string{email}
		if req.RequesterID != nil {
			requester, err := s.store.Signing().FindUserEmail(ctx, *req.RequesterID)
			if err != nil {
				logger.Warn("Failed to load requester email", zap.Error(err))
			}
			recipients = append(recipients, requester)
		}
		s.sendSignedCopy(ctx, notifications.SignedCopy{
			Recipients:    recipients,
			SignerName:    name,
			DocumentTitle: orDefault(doc.Title, defaultDocumentTitle),
			FileName:      fmt.Sprintf("convention_signee_%s.pdf", doc.ID),
			PDF:           sealed.SealedPDF,
			DocumentURL:   finalURL,
		})
	}

	s.publish(ctx, notifications.Event{
		Type:           notifications.EventSignatureSigned,
		OrganizationID: req.OrganizationID,
		RequestID:      req.ID,
		SignerEmail:    email,
		IntegrityHash:  result.IntegrityHash,
		OccurredAt:     now,
	})
	logger.Info("Signature request signed", zap.Bool("sealed", sealed != nil))
	return result, nil
}

func (s *Service) completeAttendance(ctx context.Context, req *AttendanceRequest, payload string, md security.Metadata, now time.Time) (*SubmitResult, error) {
	if req.Status != StatusPending {
		return nil, publicErr(ErrAlreadySigned, msgAlreadyAttended, nil)
	}
	if err := attendanceExpiry(req, now); err != nil {
		return nil, err
	}
	verified, err := checkLocation(req.Session, md.Geolocation)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.StudentEmail)
	hash := s.hasher.Sum(email, payload, md)
	record := evidence.NewRecord(req.OrganizationID, evidence.RequestAttendance, req.ID, email, payload, evidence.Metadata{Metadata: md}, hash)

	att := &Attendance{
		ID:             uuid.New(),
		OrganizationID: req.OrganizationID,
		StudentID:      req.StudentID,
		Date:           now.Truncate(24 * time.Hour),
		Status:         attendancePresent,
	}
	if req.Session != nil {
		att.SessionID = req.Session.SessionID
		if req.Session.Date != nil {
			att.Date = *req.Session.Date
		}
	}
	completion := AttendanceCompletion{
		RequestID:        req.ID,
		AttendanceID:     att.ID,
		SignatureData:    payload,
		SignedAt:         now,
		LocationVerified: verified,
		IPAddress:        md.IP,
		UserAgent:        md.UserAgent,
	}
	if geo := md.Geolocation; geo != nil {
		lat, lng := geo.Lat, geo.Lng
		att.Latitude, att.Longitude, att.LocationAccuracy = &lat, &lng, geo.Accuracy
		completion.Latitude, completion.Longitude, completion.Accuracy = &lat, &lng, geo.Accuracy
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.Evidence().Insert(ctx, record); err != nil {
			return fmt.Errorf("insert evidence: %w", err)
		}
		if err := tx.Signing().CreateAttendance(ctx, att); err != nil {
			return fmt.Errorf("create attendance: %w", err)
		}
		if err := tx.Signing().MarkAttendanceRequestSigned(ctx, completion); err != nil {
			return fmt.Errorf("mark attendance request signed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, txFailure(err, msgAlreadyAttended, msgSaveAttendance)
	}

	s.publish(ctx, notifications.Event{
		Type:           notifications.EventAttendanceSigned,
		OrganizationID: req.OrganizationID,
		RequestID:      req.ID,
		SignerEmail:    email,
		IntegrityHash:  hash,
		OccurredAt:     now,
	})
	s.logger.Info("Attendance recorded",
		zap.String("attendance_request_id", req.ID.String()),
		zap.Bool("location_verified", verified))
	return &SubmitResult{Type: KindAttendance, IntegrityHash: hash, Message: msgAttendanceDone}, nil
}

func (s *Service) completeProcess(ctx context.Context, proc *SigningProcess, sig *Signatory, payload string, md security.Metadata, now time.Time) (*SubmitResult, error) {
	logger := s.logger.With(
		zap.String("process_id", proc.ID.String()),
		zap.Int("order_index", sig.OrderIndex))

	signatories, err := s.store.Signing().ListSignatories(ctx, proc.ID)
	if err != nil {
		return nil, dependencyErr(msgServerError, fmt.Errorf("list signatories: %w", err))
	}
	tr, err := Advance(proc, sig, len(signatories))
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, publicErr(ErrNotFound, msgInvalidLink, err)
	case errors.Is(err, ErrAlreadySigned):
		return nil, publicErr(ErrAlreadySigned, msgAlreadySigned, err)
	case err != nil:
		return nil, dependencyErr(msgServerError, err)
	}

	doc, err := s.store.Documents().GetDocumentByID(ctx, proc.DocumentID)
	if err != nil {
		return nil, dependencyErr(msgServerError, fmt.Errorf("load document %s: %w", proc.DocumentID, err))
	}

	var source []byte
	if sig.OrderIndex == 0 {
		if doc == nil || doc.FileURL == "" {
			return nil, publicErr(ErrNotFound, msgNoDocumentFile, nil)
		}
		key, ok := s.storage.PathFromURL(doc.FileURL)
		if !ok {
			return nil, publicErr(ErrInvalidInput, msgUnsupportedURL, nil)
		}
		if source, err = s.storage.Download(ctx, key); err != nil {
			return nil, dependencyErr(msgLoadDocument, fmt.Errorf("download %s: %w", key, err))
		}
	} else {
		if proc.IntermediatePDFPath == nil || *proc.IntermediatePDFPath == "" {
			return nil, publicErr(ErrNotFound, msgNoIntermediate, nil)
		}
		if source, err = s.storage.Download(ctx, *proc.IntermediatePDFPath); err != nil {
			return nil, dependencyErr(msgLoadIntermediate, fmt.Errorf("download %s: %w", *proc.IntermediatePDFPath, err))
		}
	}

	email := strings.TrimSpace(sig.Email)
	name := orDefault(sig.Name, defaultSignerName)
	sealed, err := s.seal(ctx, doc, source, payload, pdf.ZoneIDForSignatory(sig.Role, sig.OrderIndex), pdf.SealOptions{
		SignerName:  name,
		SignerEmail: email,
		SignedAt:    now,
		IP:          md.IP,
	})
	if err != nil {
		return nil, dependencyErr(msgSealFailed, err)
	}

	var key, uploadMsg string
	var previous []byte
	if tr.Final {
		key, uploadMsg = documents.FinalKey(proc.OrganizationID, proc.DocumentID), msgUploadSigned
	} else {
		key, uploadMsg = documents.IntermediateKey(proc.OrganizationID, proc.ID), msgUploadDocument
		if proc.IntermediatePDFPath != nil && *proc.IntermediatePDFPath == key {
			previous = source
		}
	}
	url, err := s.storage.UploadPDF(ctx, key, sealed.SealedPDF)
	if err != nil {
		return nil, dependencyErr(uploadMsg, fmt.Errorf("upload %s: %w", key, err))
	}
	if !tr.Final {
		tr.IntermediatePath, tr.IntermediateURL = &key, &url
	}

	evMeta := evidence.Metadata{Metadata: md, SignatoryID: sig.ID.String(), PDFIntegrityHash: sealed.IntegrityHash}
	record := evidence.NewRecord(proc.OrganizationID, evidence.RequestProcess, proc.ID, email, payload, evMeta, sealed.IntegrityHash)

	err = s.store.WithTx(ctx, func(tx Store) error {
		if tr.Final {
			if err := tx.Documents().MarkSigned(ctx, proc.OrganizationID, proc.DocumentID, key, url, now); err != nil {
				return fmt.Errorf("mark document signed: %w", err)
			}
		}
		if err := tx.Signing().MarkSignatorySigned(ctx, sig.ID, payload, now); err != nil {
			return fmt.Errorf("mark signatory signed: %w", err)
		}
		if err := tx.Signing().AdvanceProcess(ctx, tr, now); err != nil {
			return fmt.Errorf("advance process: %w", err)
		}
		if err := tx.Evidence().Insert(ctx, record); err != nil {
			return fmt.Errorf("insert evidence: %w", err)
		}
		return nil
	})
	if err != nil {
		s.compensate(ctx, key, previous)
		return nil, txFailure(err, msgAlreadySigned, msgSaveProcess)
	}
	logger.Info("Process step signed", zap.String("status", tr.Status), zap.Int("current_index", tr.ToIndex))

	title := processTitle(proc, doc)
	event := notifications.Event{
		Type:           notifications.EventProcessStep,
		OrganizationID: proc.OrganizationID,
		RequestID:      proc.ID,
		SignerEmail:    email,
		IntegrityHash:  sealed.IntegrityHash,
		OccurredAt:     now,
	}

	if tr.Final {
		recipients := make([]string, 0, len(signatories)+1)
		for _, p := range signatories {
			recipients = append(recipients, p.Email)
		}
		contact, err := s.store.Signing().FindOrganizationContact(ctx, proc.OrganizationID)
		if err != nil {
			logger.Warn("Failed to load organization contact", zap.Error(err))
		}
		recipients = append(recipients, contact)
		s.sendSignedCopy(ctx, notifications.SignedCopy{
			Recipients:    recipients,
			SignerName:    name,
			DocumentTitle: title,
			FileName:      fmt.Sprintf("convention_signee_%s.pdf", proc.DocumentID),
			PDF:           sealed.SealedPDF,
			DocumentURL:   url,
			AllParties:    true,
		})
		event.Type = notifications.EventProcessCompleted
		s.publish(ctx, event)
		return &SubmitResult{Type: KindProcess, IntegrityHash: sealed.IntegrityHash, Message: msgProcessFinalDone}, nil
	}

	if tr.ToIndex < len(signatories) {
		next := signatories[tr.ToIndex]
		if err := s.notifier.SendSigningLink(ctx, notifications.SigningLink{
			Email:         next.Email,
			Name:          next.Name,
			DocumentTitle: title,
			Token:         next.Token,
		}); err != nil {
			logger.Error("Failed to notify next signatory", zap.String("signatory_id", next.ID.String()), zap.Error(err))
		}
	}
	s.publish(ctx, event)
	return &SubmitResult{Type: KindProcess, IntegrityHash: sealed.IntegrityHash, Message: msgProcessStepDone}, nil
}

// Lookup returns the request behind token so the signing page can render it.
// Expired links return both the request and an ErrExpired error.
func (s *Service) Lookup(ctx context.Context, token string) (*LookupResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, publicErr(ErrInvalidInput, msgMissingToken, nil)
	}
	res, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, dependencyErr(msgServerError, err)
	}

	now := s.now()
	switch res.Kind {
	case KindSignature:
		out := &LookupResult{Type: KindSignature, Data: res.Signature}
		if res.Signature.Status != StatusPending {
			return out, nil
		}
		return out, signatureExpiry(res.Signature, now)
	case KindAttendance:
		out := &LookupResult{Type: KindAttendance, Data: res.Attendance}
		if res.Attendance.Status != StatusPending {
			return out, nil
		}
		return out, attendanceExpiry(res.Attendance, now)
	case KindProcess:
		doc, err := s.store.Documents().GetDocumentByID(ctx, res.Process.DocumentID)
		if err != nil {
			return nil, dependencyErr(msgServerError, fmt.Errorf("load document %s: %w", res.Process.DocumentID, err))
		}
		view := ProcessView{Process: res.Process, Signatory: res.Signatory, Document: doc}
		view.PDFURL = s.previewURL(ctx, res.Process, doc)
		return &LookupResult{Type: KindProcess, Data: view}, nil
	default:
		return nil, publicErr(ErrNotFound, msgInvalidLink, nil)
	}
}

// SendReminders re-sends the signing link to signatories idle for longer than
// the reminder delay. It returns the number of reminders sent.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.store.Signing().ListPendingReminders(ctx, now.Add(-s.opts.ReminderAfter), s.opts.ReminderBatch)
	if err != nil {
		return 0, fmt.Errorf("list pending reminders: %w", err)
	}

	sent := 0
	for _, sig := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		proc, err := s.store.Signing().GetProcess(ctx, sig.ProcessID)
		if err != nil || proc == nil {
			s.logger.Warn("Skipping reminder, process unavailable", zap.String("signatory_id", sig.ID.String()), zap.Error(err))
			continue
		}
		doc, err := s.store.Documents().GetDocumentByID(ctx, proc.DocumentID)
		if err != nil {
			s.logger.Warn("Failed to load document for reminder", zap.String("process_id", proc.ID.String()), zap.Error(err))
		}
		if err := s.notifier.SendSigningLink(ctx, notifications.SigningLink{
			Email:         sig.Email,
			Name:          sig.Name,
			DocumentTitle: processTitle(proc, doc),
			Token:         sig.Token,
			Reminder:      true,
		}); err != nil {
			s.logger.Error("Failed to send reminder", zap.String("signatory_id", sig.ID.String()), zap.Error(err))
			continue
		}
		if err := s.store.Signing().MarkReminded(ctx, sig.ID, now); err != nil {
			s.logger.Error("Failed to record reminder", zap.String("signatory_id", sig.ID.String()), zap.Error(err))
		}
		sent++
	}
	return sent, nil
}

// previewURL presigns the intermediate PDF when one exists, else the document file.
func (s *Service) previewURL(ctx context.Context, proc *SigningProcess, doc *documents.Document) string {
	key := ""
	if proc.IntermediatePDFPath != nil {
		key = *proc.IntermediatePDFPath
	} else if doc != nil {
		key, _ = s.storage.PathFromURL(doc.FileURL)
	}
	if key == "" {
		return ""
	}
	url, err := s.storage.PresignedURL(ctx, key, previewTTL)
	if err != nil {
		s.logger.Warn("Failed to presign process PDF", zap.String("process_id", proc.ID.String()), zap.Error(err))
		return ""
	}
	return url
}

func (s *Service) zoneChain() ZoneChain {
	return ZoneChain{
		StaticZones(s.opts.Zones),
		DocumentZones(),
		TemplateZones(s.store.Documents()),
	}
}

// seal resolves the zones of doc and stamps source. A signatory zone the
// document does not declare falls back to the default zone when present.
func (s *Service) seal(ctx context.Context, doc *documents.Document, source []byte, payload, zoneID string, opts pdf.SealOptions) (*pdf.SealResult, error) {
	zones, err := s.zoneChain().Resolve(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("resolve sign zones: %w", err)
	}
	if len(zones) == 0 {
		s.logger.Warn("No signature zones declared, sealing provenance only", zap.String("signer", opts.SignerEmail))
	} else if _, ok := pdf.FindZone(zones, zoneID); !ok {
		if _, ok := pdf.FindZone(zones, pdf.DefaultZoneID); ok {
			s.logger.Warn("Signature zone not declared, sealing in the default zone",
				zap.String("signer", opts.SignerEmail),
				zap.String("zone", zoneID),
				zap.String("fallback", pdf.DefaultZoneID))
			zoneID = pdf.DefaultZoneID
		}
	}
	opts.Zones = zones
	opts.SignZoneID = zoneID
	return s.sealer.Seal(ctx, source, payload, opts)
}

// compensate undoes an upload whose database transaction failed: the previous
// bytes are restored when known, otherwise the object is removed.
func (s *Service) compensate(ctx context.Context, key string, previous []byte) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if previous != nil {
		_, err = s.storage.UploadPDF(ctx, key, previous)
	} else {
		err = s.storage.Delete(ctx, key)
	}
	if err != nil {
		s.logger.Error("Failed to roll back uploaded artifact", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) sendSignedCopy(ctx context.Context, msg notifications.SignedCopy) {
	if err := s.notifier.SendSignedCopy(ctx, msg); err != nil {
		s.logger.Error("Failed to send signed copy", zap.String("document", msg.DocumentTitle), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, ev notifications.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

func txFailure(err error, conflictMsg, failMsg string) error {
	switch {
	case errors.Is(err, ErrAlreadySigned):
		return publicErr(ErrAlreadySigned, conflictMsg, err)
	case errors.Is(err, ErrConflict):
		return publicErr(ErrConflict, conflictMsg, err)
	default:
		return dependencyErr(failMsg, err)
	}
}

func signatureExpiry(req *SignatureRequest, now time.Time) error {
	if req.TokenExpiresAt != nil && req.TokenExpiresAt.Before(now) {
		return publicErr(ErrExpired, msgLinkExpired, nil)
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(now) {
		return publicErr(ErrExpired, msgRequestExpired, nil)
	}
	return nil
}

func attendanceExpiry(req *AttendanceRequest, now time.Time) error {
	if req.Session != nil && req.Session.Status == SessionClosed {
		return publicErr(ErrExpired, msgSessionClosed, nil)
	}
	if req.TokenExpiresAt != nil && req.TokenExpiresAt.Before(now) {
		return publicErr(ErrExpired, msgLinkExpired, nil)
	}
	if req.Session != nil && req.Session.ClosesAt != nil && req.Session.ClosesAt.Before(now) {
		return publicErr(ErrExpired, msgSessionExpired, nil)
	}
	return nil
}

// checkLocation applies the session geofence and reports whether the
// submitted position could be verified.
func checkLocation(session *AttendanceSession, geo *security.Geolocation) (bool, error) {
	required := session != nil && session.RequireGeolocation
	if geo == nil {
		if required {
			return false, publicErr(ErrGeolocationRequired, msgGeoRequired, nil)
		}
		return false, nil
	}

	point, err := geospatial.NewPoint(geo.Lat, geo.Lng)
	if err != nil {
		return false, publicErr(ErrInvalidInput, msgGeoInvalid, err)
	}
	if session == nil || session.Latitude == nil || session.Longitude == nil {
		return true, nil
	}
	center, err := geospatial.NewPoint(*session.Latitude, *session.Longitude)
	if err != nil {
		return true, nil
	}

	radius := float64(geospatial.DefaultRadiusMeters)
	if session.RadiusMeters != nil && *session.RadiusMeters > 0 {
		radius = *session.RadiusMeters
	}
	ok, distance := geospatial.WithinRadius(center, point, radius)
	if !ok && required {
		return false, publicErr(ErrOutOfRange,
			fmt.Sprintf("Vous êtes trop loin du lieu de formation (%.0fm, maximum: %.0fm).", distance, radius), nil)
	}
	return ok, nil
}

func processTitle(proc *SigningProcess, doc *documents.Document) string {
	if proc.Title != "" {
		return proc.Title
	}
	if doc != nil && doc.Title != "" {
		return doc.Title
	}
	return defaultDocumentTitle
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
