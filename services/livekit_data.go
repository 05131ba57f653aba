package services

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// DataSender, bir net'in ses odasına (LiveKit room = net ID) data paketi gönderir.
type DataSender interface {
	SendData(ctx context.Context, room, topic string, payload []byte) error
}

type livekitDataSender struct {
	client *lksdk.RoomServiceClient
}

// NewLiveKitDataSender, LiveKit RoomService API'si üzerinden çalışan DataSender döner.
// url ws:// veya http(s):// olabilir; SDK http'ye çevirir.
func NewLiveKitDataSender(url, apiKey, apiSecret string) DataSender {
	return &livekitDataSender{
		client: lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
	}
}

func (s *livekitDataSender) SendData(ctx context.Context, room, topic string, payload []byte) error {
	_, err := s.client.SendData(ctx, &livekit.SendDataRequest{
		Room:  room,
		Data:  payload,
		Kind:  livekit.DataPacket_RELIABLE,
		Topic: &topic,
	})
	if err != nil {
		return fmt.Errorf("failed to send livekit data packet: %w", err)
	}
	return nil
}
