package fetcher

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func respEvent(resType proto.NetworkResourceType, status int) *proto.NetworkResponseReceived {
	return &proto.NetworkResponseReceived{
		Type:     resType,
		Response: &proto.NetworkResponse{Status: status},
	}
}

func TestDocStatusFollowsRedirectChain(t *testing.T) {
	var d docStatus
	d.observe(respEvent(proto.NetworkResourceTypeDocument, 301))
	d.observe(respEvent(proto.NetworkResourceTypeDocument, 200))
	if d.code != 200 {
		t.Errorf("expected final document status 200, got %d", d.code)
	}
}

func TestDocStatusIgnoresSubresources(t *testing.T) {
	var d docStatus
	d.observe(respEvent(proto.NetworkResourceTypeDocument, 404))
	d.observe(respEvent(proto.NetworkResourceTypeStylesheet, 200))
	d.observe(respEvent(proto.NetworkResourceTypeImage, 200))
	if d.code != 404 {
		t.Errorf("expected document status 404, got %d", d.code)
	}
}

func TestDocStatusSkipsNilResponse(t *testing.T) {
	var d docStatus
	d.observe(&proto.NetworkResponseReceived{Type: proto.NetworkResourceTypeDocument})
	if d.code != 0 {
		t.Errorf("expected zero status, got %d", d.code)
	}
}
