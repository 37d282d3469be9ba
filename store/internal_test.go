package store

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- Config.validate Tests ---

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := Config{TableName: "t"}
	cfg.validate()

	if cfg.Logger == nil {
		t.Error("expected default logger")
	}
	if cfg.TableName != "t" {
		t.Errorf("expected TableName preserved, got %q", cfg.TableName)
	}
}

func TestConfigValidated_DoesNotMutate(t *testing.T) {
	cfg := Config{TableName: "t"}
	got := cfg.Validated()

	if got.Logger == nil {
		t.Error("expected default logger on copy")
	}
	if cfg.Logger != nil {
		t.Error("expected original config untouched")
	}
}

func TestClientConfigValidate_DefaultRegion(t *testing.T) {
	cfg := ClientConfig{}
	cfg.validate()

	if cfg.Region != "us-east-1" {
		t.Errorf("expected region us-east-1, got %q", cfg.Region)
	}
}

func TestClientConfigValidate_PreservesRegion(t *testing.T) {
	cfg := ClientConfig{Region: "eu-west-1"}
	cfg.validate()

	if cfg.Region != "eu-west-1" {
		t.Errorf("expected region eu-west-1, got %q", cfg.Region)
	}
}

// --- TableSchema.createTableInput Tests ---

func TestCreateTableInput_DefaultBilling(t *testing.T) {
	schema := TableSchema{
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
		},
	}

	input := schema.createTableInput("orders")
	if *input.TableName != "orders" {
		t.Errorf("expected table name orders, got %q", *input.TableName)
	}
	if input.BillingMode != types.BillingModePayPerRequest {
		t.Errorf("expected PAY_PER_REQUEST, got %q", input.BillingMode)
	}
	if input.GlobalSecondaryIndexes != nil {
		t.Error("expected no secondary indexes")
	}
}

func TestCreateTableInput_ExplicitBilling(t *testing.T) {
	schema := TableSchema{BillingMode: types.BillingModeProvisioned}

	input := schema.createTableInput("orders")
	if input.BillingMode != types.BillingModeProvisioned {
		t.Errorf("expected PROVISIONED, got %q", input.BillingMode)
	}
}

// --- kindOf Tests ---

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    types.AttributeValue
		want string
	}{
		{&types.AttributeValueMemberS{Value: "x"}, "S"},
		{&types.AttributeValueMemberN{Value: "1"}, "N"},
		{&types.AttributeValueMemberB{Value: []byte("x")}, "B"},
		{&types.AttributeValueMemberBOOL{Value: true}, "BOOL"},
		{&types.AttributeValueMemberNULL{Value: true}, "NULL"},
		{&types.AttributeValueMemberM{}, "M"},
		{&types.AttributeValueMemberL{}, "L"},
		{&types.AttributeValueMemberSS{}, "SS"},
		{&types.AttributeValueMemberNS{}, "NS"},
		{&types.AttributeValueMemberBS{}, "BS"},
		{nil, "unknown"},
	}

	for _, tt := range tests {
		if got := kindOf(tt.v); got != tt.want {
			t.Errorf("kindOf(%T) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
