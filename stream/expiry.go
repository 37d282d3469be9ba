// Package stream provides DynamoDB Streams handlers for the session table.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/singletable/entity"
)

// Identity of the store when it deletes expired items itself.
const (
	sweepIdentityType      = "Service"
	sweepIdentityPrincipal = "dynamodb.amazonaws.com"
)

// Handler observes session tokens removed by the table's TTL sweep.
type Handler struct {
	logger *slog.Logger

	// OnExpired, when set, is called once per swept token. An error fails
	// the batch so Lambda retries it.
	OnExpired func(ctx context.Context, tok entity.SessionToken) error
}

// NewHandler creates a new stream handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// HandleSessionExpiry processes a DynamoDB stream batch from the session
// table. It has the shape of an AWS Lambda handler.
func (h *Handler) HandleSessionExpiry(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if !isSweep(record) {
		return nil
	}

	tok, err := entity.DecodeSessionToken(ConvertImage(record.Change.OldImage))
	if err != nil {
		// The item is already gone; a retry cannot decode it either.
		h.logger.Warn("skipping undecodable expired token",
			"eventID", record.EventID,
			"error", err,
		)
		return nil
	}

	h.logger.Info("session token expired",
		"user", tok.Username,
		"expiresAt", tok.ExpiresAt,
	)

	if h.OnExpired == nil {
		return nil
	}
	if err := h.OnExpired(ctx, tok); err != nil {
		return fmt.Errorf("on expired %s: %w", tok.Username, err)
	}
	return nil
}

// isSweep reports whether record is a removal made by the TTL sweep rather
// than by a client.
func isSweep(record events.DynamoDBEventRecord) bool {
	if record.EventName != "REMOVE" || record.UserIdentity == nil {
		return false
	}
	return record.UserIdentity.Type == sweepIdentityType &&
		record.UserIdentity.PrincipalID == sweepIdentityPrincipal
}

// ConvertImage converts a DynamoDB stream image to an SDK item, so it can be
// decoded like any item read from the table.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		if av := convertValue(v); av != nil {
			result[k] = av
		}
	}
	return result
}

func convertValue(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: ConvertImage(v.Map())}
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for _, item := range list {
			if av := convertValue(item); av != nil {
				out = append(out, av)
			}
		}
		return &types.AttributeValueMemberL{Value: out}
	}
	return nil
}
