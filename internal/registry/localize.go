package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/kontoworks/konto/internal/common"
	"github.com/kontoworks/konto/internal/model"
	"github.com/kontoworks/konto/internal/service"
)

// PartnerFromMatch builds a user-private partner from a registry hit. The
// caller persists it; nothing is written here.
func PartnerFromMatch(userID string, m Match) *model.Partner {
	p := &model.Partner{
		UserID:   userID,
		Name:     m.Entry.Name,
		VATID:    m.Entry.VATID,
		Website:  m.Entry.Website,
		Type:     model.PartnerTypeUser,
		IsActive: true,
	}
	if domain := websiteDomain(m.Entry.Website); domain != "" {
		p.EmailDomains = []string{domain}
	}
	return p
}

// websiteDomain extracts the bare host from a website URL for email-domain
// matching. "https://www.acme.example/shop" becomes "acme.example".
func websiteDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// LocalizeGlobal copies a shared partner template into the user's own partner
// set. The copy keeps the name, aliases and identifiers and records its origin
// in GlobalPartnerID, but starts with no learned patterns: patterns only ever
// come from the user's own confirmations. Localizing the same template twice
// returns the existing copy.
func LocalizeGlobal(ctx context.Context, storage service.Storage, userID, globalPartnerID string) (*model.Partner, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.NewUserError("a user id is required", nil)
	}
	if strings.TrimSpace(globalPartnerID) == "" {
		return nil, common.NewUserError("a partner id is required", nil)
	}

	global, err := storage.GetPartner(ctx, globalPartnerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NewUserError(fmt.Sprintf("partner %s does not exist", globalPartnerID), common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load partner %s: %w", globalPartnerID, err)
	}
	if global.Type != model.PartnerTypeGlobal {
		return nil, common.NewUserError(fmt.Sprintf("partner %s is not a shared template", globalPartnerID), nil)
	}
	if !global.IsActive {
		return nil, common.NewUserError(fmt.Sprintf("partner %s is no longer active", globalPartnerID), nil)
	}

	existing, err := storage.GetPartnersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partners for user %s: %w", userID, err)
	}
	for i := range existing {
		if existing[i].GlobalPartnerID == global.ID {
			return &existing[i], nil
		}
	}

	local := &model.Partner{
		UserID:          userID,
		Name:            global.Name,
		VATID:           global.VATID,
		Website:         global.Website,
		GlobalPartnerID: global.ID,
		Type:            model.PartnerTypeUser,
		Aliases:         slices.Clone(global.Aliases),
		AccountNumbers:  slices.Clone(global.AccountNumbers),
		EmailDomains:    slices.Clone(global.EmailDomains),
		IsActive:        true,
	}
	if err := storage.SavePartner(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to save localized partner: %w", err)
	}
	return local, nil
}
