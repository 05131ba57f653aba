package services

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/akinalp/nexus/models"
	"github.com/akinalp/nexus/pkg"
)

// VoiceTokenService, net'lerin ses odalarına katılmak için LiveKit token'ı üretir.
// LiveKit room adı net ID'sidir.
type VoiceTokenService interface {
	GenerateToken(actor *models.TokenClaims, netID, clientID string) (*models.VoiceTokenResponse, error)
}

type voiceTokenService struct {
	url       string
	apiKey    string
	apiSecret string
	validFor  time.Duration
}

// NewVoiceTokenService, constructor.
func NewVoiceTokenService(url, apiKey, apiSecret string, validFor time.Duration) VoiceTokenService {
	return &voiceTokenService{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		validFor:  validFor,
	}
}

func (s *voiceTokenService) GenerateToken(actor *models.TokenClaims, netID, clientID string) (*models.VoiceTokenResponse, error) {
	if actor == nil || !actor.Permissions.Has(models.PermConnectVoice) {
		return nil, fmt.Errorf("%w: missing connect voice permission", pkg.ErrForbidden)
	}
	if netID == "" || clientID == "" {
		return nil, fmt.Errorf("%w: net id and client id are required", pkg.ErrBadRequest)
	}
	if s.apiKey == "" || s.apiSecret == "" {
		return nil, fmt.Errorf("%w: voice server is not configured", pkg.ErrInternal)
	}

	canPublish := actor.Permissions.Has(models.PermSpeak)
	canSubscribe := true
	canPublishData := true

	at := auth.NewAccessToken(s.apiKey, s.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin:       true,
		Room:           netID,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}

	// Aynı kullanıcının birden fazla cihazı aynı odada olabilir;
	// identity user+client, metadata client ID'dir.
	at.AddGrant(grant).
		SetIdentity(actor.UserID + ":" + clientID).
		SetName(actor.DisplayName()).
		SetMetadata(clientID).
		SetValidFor(s.validFor)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("failed to generate livekit token: %w", err)
	}

	return &models.VoiceTokenResponse{
		Token: token,
		URL:   s.url,
		NetID: netID,
	}, nil
}
