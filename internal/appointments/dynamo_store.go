package appointments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/dental-agenda/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore persists appointments as one DynamoDB item each, keyed by id.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	tracer    trace.Tracer
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		tracer:    otel.Tracer("dental.internal.appointments.dynamo"),
		logger:    logger,
	}
}

// List scans the whole table, following pagination.
func (s *DynamoStore) List(ctx context.Context) ([]Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.list")
	defer span.End()

	out := []Appointment{}
	var startKey map[string]types.AttributeValue
	for {
		page, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			span.RecordError(err)
			return nil, classifyDynamoError("scan", err)
		}
		var items []Appointment
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: failed to decode scan page: %w", err)
		}
		for i := range items {
			if items[i].Messages == nil {
				items[i].Messages = []ChatMessage{}
			}
		}
		out = append(out, items...)
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	span.SetAttributes(attribute.Int("appointments.count", len(out)))
	return out, nil
}

// Get fetches one item with a consistent read.
func (s *DynamoStore) Get(ctx context.Context, id string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.get")
	defer span.End()

	if id == "" {
		return nil, ErrNotFound
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, classifyDynamoError("get", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
	}
	if appt.Messages == nil {
		appt.Messages = []ChatMessage{}
	}
	return &appt, nil
}

// Insert puts a new item, refusing to overwrite an existing id.
func (s *DynamoStore) Insert(ctx context.Context, appt *Appointment) error {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.insert")
	defer span.End()

	if appt == nil {
		return errors.New("appointments: appointment cannot be nil")
	}
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	if appt.Messages == nil {
		appt.Messages = []ChatMessage{}
	}

	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		span.RecordError(err)
		if isConditionFailed(err) {
			return ErrAlreadyExists
		}
		return classifyDynamoError("insert", err)
	}
	return nil
}

// Update writes only the patched attributes. Empty optional strings remove
// the attribute.
func (s *DynamoStore) Update(ctx context.Context, id string, patch Patch, expect ...Status) error {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.update")
	defer span.End()

	expr := buildUpdateExpression(patch)
	if expr.empty() {
		return ErrEmptyPatch
	}

	condition := "attribute_exists(#id)"
	expr.names["#id"] = "id"
	if len(expect) > 0 {
		placeholders := make([]string, 0, len(expect))
		for i, st := range expect {
			key := fmt.Sprintf(":expect%d", i)
			placeholders = append(placeholders, key)
			expr.values[key] = &types.AttributeValueMemberS{Value: string(st)}
		}
		expr.names["#status"] = "status"
		condition += " AND #status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      itemKey(id),
		UpdateExpression:         aws.String(expr.String()),
		ConditionExpression:      aws.String(condition),
		ExpressionAttributeNames: expr.names,
	}
	if len(expr.values) > 0 {
		input.ExpressionAttributeValues = expr.values
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		span.RecordError(err)
		if isConditionFailed(err) {
			return s.explainConditionFailure(ctx, id, len(expect) > 0)
		}
		return classifyDynamoError("update", err)
	}
	return nil
}

// AppendMessage appends in a single UpdateItem so concurrent writers never
// overwrite each other.
func (s *DynamoStore) AppendMessage(ctx context.Context, id string, msg ChatMessage) error {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.append_message")
	defer span.End()

	msgAttr, err := attributevalue.Marshal([]ChatMessage{msg})
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal message: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(id),
		UpdateExpression:    aws.String("SET #messages = list_append(if_not_exists(#messages, :empty), :msg)"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id":       "id",
			"#messages": "messages",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":msg":   msgAttr,
		},
	})
	if err != nil {
		span.RecordError(err)
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return classifyDynamoError("append message", err)
	}
	return nil
}

// Delete removes the item; the thread goes with it.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "appointments.dynamo.delete")
	defer span.End()

	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      itemKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		span.RecordError(err)
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return classifyDynamoError("delete", err)
	}
	return nil
}

// explainConditionFailure tells a missing item apart from a status mismatch.
func (s *DynamoStore) explainConditionFailure(ctx context.Context, id string, hadStatusCondition bool) error {
	if !hadStatusCondition {
		return ErrNotFound
	}
	if _, err := s.Get(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Warn("failed to inspect appointment after conditional failure", "appointment_id", id, "error", err)
	}
	return ErrStatusConflict
}

type updateExpression struct {
	sets    []string
	removes []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func (u updateExpression) empty() bool {
	return len(u.sets) == 0 && len(u.removes) == 0
}

func (u updateExpression) String() string {
	var parts []string
	if len(u.sets) > 0 {
		parts = append(parts, "SET "+strings.Join(u.sets, ", "))
	}
	if len(u.removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(u.removes, ", "))
	}
	return strings.Join(parts, " ")
}

func buildUpdateExpression(p Patch) updateExpression {
	u := updateExpression{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
	set := func(attr, value string) {
		u.names["#"+attr] = attr
		u.values[":"+attr] = &types.AttributeValueMemberS{Value: value}
		u.sets = append(u.sets, fmt.Sprintf("#%s = :%s", attr, attr))
	}
	setOrRemove := func(attr, value string) {
		if value == "" {
			u.names["#"+attr] = attr
			u.removes = append(u.removes, "#"+attr)
			return
		}
		set(attr, value)
	}

	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.Email != nil {
		setOrRemove("email", *p.Email)
	}
	if p.Phone != nil {
		setOrRemove("phone", *p.Phone)
	}
	if p.Date != nil {
		set("date", *p.Date)
	}
	if p.Time != nil {
		set("time", *p.Time)
	}
	if p.Treatment != nil {
		set("treatment", p.Treatment.String())
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.CancellationReason != nil {
		setOrRemove("cancellationReason", *p.CancellationReason)
	}
	sort.Strings(u.sets)
	sort.Strings(u.removes)
	return u
}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// classifyDynamoError maps credential rejections to ErrPermissionDenied and
// wraps everything else.
func classifyDynamoError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return fmt.Errorf("%w: %s: %s", ErrPermissionDenied, op, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("appointments: failed to %s: %w", op, err)
}
