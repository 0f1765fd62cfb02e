package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/proto"
)

func actorFromIdentity(id auth.Identity) core.Actor {
	role := core.RoleVisitor
	if id.Admin {
		role = core.RoleAdmin
	}
	return core.Actor{ID: id.UID, Role: role, DisplayName: id.Name}
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeBadRequest, core.ErrCodeEmptyMessage, core.ErrCodeMessageTooLong, core.ErrCodeUnsupported:
		return http.StatusBadRequest
	case core.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case core.ErrCodeForbidden:
		return http.StatusForbidden
	case core.ErrCodeNoConversation:
		return http.StatusConflict
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case core.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to a JSON error response.
func writeError(c *gin.Context, err error) {
	ce := core.AsCoreError(err)
	c.JSON(statusForCode(ce.Code), ErrorResponse{Error: ce.Message, Code: ce.Code})
}

func protoError(err error) *proto.Error {
	ce := core.AsCoreError(err)
	return &proto.Error{Code: ce.Code, Msg: ce.Message}
}

func errorOutbound(code, msg string) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: code, Msg: msg}}
}

func outboundFromView(v core.View) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventView, Data: v}
}

var errForbiddenConversation = errors.New("conversation belongs to another visitor")

func forbidden(err error) error {
	return &core.CoreError{Code: core.ErrCodeForbidden, Message: err.Error()}
}
