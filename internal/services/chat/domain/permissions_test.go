package domain

import "testing"

func TestHas(t *testing.T) {
	t.Parallel()

	bits := int64(PermissionSendMessage | PermissionPrivateChannel)
	if !Has(bits, PermissionSendMessage) {
		t.Fatal("expected send-message to be granted")
	}
	if !Has(bits, PermissionPrivateChannel) {
		t.Fatal("expected private-channel to be granted")
	}
	if Has(bits, PermissionJoinVoice) {
		t.Fatal("expected join-voice to be absent")
	}
	if Has(0, PermissionSendMessage) {
		t.Fatal("expected zero bits to grant nothing")
	}
}
