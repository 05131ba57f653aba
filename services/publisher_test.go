package services

import (
	"sync"

	"github.com/akinalp/nexus/ws"
)

// sentEvent, recordingPublisher'ın kaydettiği tek bir gönderim.
type sentEvent struct {
	UserIDs  []string
	ClientID string
	Event    ws.Event
}

// recordingPublisher, ws.EventPublisher'ın testlerde kullanılan kaydedici fake'i.
type recordingPublisher struct {
	mu     sync.Mutex
	events []sentEvent
	online []string
}

func (p *recordingPublisher) record(e sentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) BroadcastToAll(event ws.Event) {
	p.record(sentEvent{Event: event})
}

func (p *recordingPublisher) BroadcastToUser(userID string, event ws.Event) {
	p.record(sentEvent{UserIDs: []string{userID}, Event: event})
}

func (p *recordingPublisher) BroadcastToUsers(userIDs []string, event ws.Event) {
	p.record(sentEvent{UserIDs: append([]string(nil), userIDs...), Event: event})
}

func (p *recordingPublisher) SendToClient(userID, clientID string, event ws.Event) {
	p.record(sentEvent{UserIDs: []string{userID}, ClientID: clientID, Event: event})
}

func (p *recordingPublisher) GetOnlineUserIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.online...)
}

// ops, kaydedilen event'lerden op'u verilen değere eşit olanları döner.
func (p *recordingPublisher) ops(op string) []sentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []sentEvent
	for _, e := range p.events {
		if e.Event.Op == op {
			out = append(out, e)
		}
	}
	return out
}
