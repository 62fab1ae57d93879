package signing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Kind is the request family a token addresses.
type Kind string

const (
	KindNone       Kind = "none"
	KindSignature  Kind = "signature"
	KindAttendance Kind = "attendance"
	KindProcess    Kind = "process"
)

var uuidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Resolution is the outcome of resolving a token. Exactly the fields of Kind are set.
type Resolution struct {
	Kind       Kind
	Signature  *SignatureRequest
	Attendance *AttendanceRequest
	Process    *SigningProcess
	Signatory  *Signatory
}

func none() Resolution { return Resolution{Kind: KindNone} }

// Resolver maps an access token to the request it was issued for.
//
// Precedence, first match wins:
//  1. access_token of a signature request, then of an attendance request (UUID tokens only)
//  2. legacy signature_token of a signature request, then of an attendance request
//  3. token of a signatory whose turn it is in a process that is not completed (UUID tokens only)
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

func IsUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

func (r *Resolver) Resolve(ctx context.Context, token string) (Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return none(), nil
	}
	isUUID := IsUUID(token)

	var (
		sigByAccess *SignatureRequest
		attByAccess *AttendanceRequest
		sigByLegacy *SignatureRequest
		attByLegacy *AttendanceRequest
	)
	g, gctx := errgroup.WithContext(ctx)
	if isUUID {
		g.Go(func() (err error) {
			sigByAccess, err = r.repo.FindSignatureRequest(gctx, ColumnAccessToken, token)
			return err
		})
		g.Go(func() (err error) {
			attByAccess, err = r.repo.FindAttendanceRequest(gctx, ColumnAccessToken, token)
			return err
		})
	}
	g.Go(func() (err error) {
		sigByLegacy, err = r.repo.FindSignatureRequest(gctx, ColumnLegacyToken, token)
		return err
	})
	g.Go(func() (err error) {
		attByLegacy, err = r.repo.FindAttendanceRequest(gctx, ColumnLegacyToken, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return Resolution{}, fmt.Errorf("resolve request token: %w", err)
	}

	switch {
	case sigByAccess != nil:
		return Resolution{Kind: KindSignature, Signature: sigByAccess}, nil
	case attByAccess != nil:
		return Resolution{Kind: KindAttendance, Attendance: attByAccess}, nil
	case sigByLegacy != nil:
		return Resolution{Kind: KindSignature, Signature: sigByLegacy}, nil
	case attByLegacy != nil:
		return Resolution{Kind: KindAttendance, Attendance: attByLegacy}, nil
	}

	if !isUUID {
		return none(), nil
	}
	return r.resolveSignatory(ctx, token)
}

func (r *Resolver) resolveSignatory(ctx context.Context, token string) (Resolution, error) {
	sig, err := r.repo.FindSignatoryByToken(ctx, token)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve signatory token: %w", err)
	}
	if sig == nil || sig.SignedAt != nil {
		return none(), nil
	}

	proc, err := r.repo.GetProcess(ctx, sig.ProcessID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load signing process %s: %w", sig.ProcessID, err)
	}
	if proc == nil || proc.Status == processCompleted || proc.CurrentIndex != sig.OrderIndex {
		return none(), nil
	}
	return Resolution{Kind: KindProcess, Process: proc, Signatory: sig}, nil
}
