package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"studybot/config"
	"studybot/models"
)

// DynamoAPI is the part of *dynamodb.Client the store uses.
type DynamoAPI interface {
	dynamodb.QueryAPIClient
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoStore keeps conversations in a DynamoDB table keyed by
// UserID (hash) and Seq (range).
type DynamoStore struct {
	db    DynamoAPI
	table string
	seq   *Sequencer
}

// NewDynamoClient builds a client from cfg. A custom endpoint and static
// credentials are used when set, e.g. for DynamoDB Local.
func NewDynamoClient(ctx context.Context, cfg config.Store) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.DynamoRegion),
	}
	if cfg.DynamoEndpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service != dynamodb.ServiceID {
				return aws.Endpoint{}, &aws.EndpointNotFoundError{}
			}
			return aws.Endpoint{URL: cfg.DynamoEndpoint, SigningRegion: region}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}

// NewDynamoStore wraps db and creates table when it does not exist yet.
func NewDynamoStore(ctx context.Context, db DynamoAPI, table string) (*DynamoStore, error) {
	s := &DynamoStore{db: db, table: table, seq: NewSequencer()}
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DynamoStore) ensureTable(ctx context.Context) error {
	_, err := s.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return unavailable("describe table", err)
	}

	_, err = s.db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("UserID"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("Seq"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("UserID"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("Seq"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return unavailable("create table", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.db)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)}, 2*time.Minute); err != nil {
		return unavailable("wait for table", err)
	}
	return nil
}

func (s *DynamoStore) History(ctx context.Context, userID string) ([]models.Message, error) {
	paginator := dynamodb.NewQueryPaginator(s.db, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	})

	msgs := make([]models.Message, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("query history", err)
		}
		for _, item := range page.Items {
			m, err := decodeItem(item)
			if err != nil {
				return nil, unavailable("decode message", err)
			}
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

func (s *DynamoStore) Append(ctx context.Context, msgs ...models.Message) ([]models.Message, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []models.Message{}, nil
	}

	seen := make(map[string]bool)
	for _, m := range msgs {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		last, err := s.lastSeq(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		s.seq.Observe(last)
	}

	out := make([]models.Message, 0, len(msgs))
	items := make([]types.TransactWriteItem, 0, len(msgs))
	for _, m := range msgs {
		m.Seq = s.seq.Next()
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.table),
				Item:                encodeItem(m),
				ConditionExpression: aws.String("attribute_not_exists(Seq)"),
			},
		})
		out = append(out, m)
	}

	if _, err := s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return nil, unavailable("write messages", err)
	}
	return out, nil
}

// lastSeq returns the highest Seq stored for userID, or 0.
func (s *DynamoStore) lastSeq(ctx context.Context, userID string) (int64, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("UserID = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ProjectionExpression: aws.String("Seq"),
		ScanIndexForward:     aws.Bool(false),
		ConsistentRead:       aws.Bool(true),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return 0, unavailable("query last seq", err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}
	seq, ok := out.Items[0]["Seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, unavailable("query last seq", errors.New("attribute Seq: not a number"))
	}
	n, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return 0, unavailable("query last seq", err)
	}
	return n, nil
}

func (s *DynamoStore) Close() error { return nil }

func encodeItem(m models.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"UserID":    &types.AttributeValueMemberS{Value: m.UserID},
		"Seq":       &types.AttributeValueMemberN{Value: strconv.FormatInt(m.Seq, 10)},
		"ID":        &types.AttributeValueMemberS{Value: m.ID},
		"Role":      &types.AttributeValueMemberS{Value: string(m.Role)},
		"Content":   &types.AttributeValueMemberS{Value: m.Content},
		"Timestamp": &types.AttributeValueMemberS{Value: m.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
}

func decodeItem(item map[string]types.AttributeValue) (models.Message, error) {
	str := func(name string) (string, error) {
		v, ok := item[name].(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("attribute %s: not a string", name)
		}
		return v.Value, nil
	}

	var (
		m   models.Message
		err error
	)
	if m.UserID, err = str("UserID"); err != nil {
		return m, err
	}
	if m.ID, err = str("ID"); err != nil {
		return m, err
	}
	role, err := str("Role")
	if err != nil {
		return m, err
	}
	m.Role = models.Role(role)
	if m.Content, err = str("Content"); err != nil {
		return m, err
	}
	ts, err := str("Timestamp")
	if err != nil {
		return m, err
	}
	if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return m, fmt.Errorf("attribute Timestamp: %w", err)
	}

	seq, ok := item["Seq"].(*types.AttributeValueMemberN)
	if !ok {
		return m, errors.New("attribute Seq: not a number")
	}
	if m.Seq, err = strconv.ParseInt(seq.Value, 10, 64); err != nil {
		return m, fmt.Errorf("attribute Seq: %w", err)
	}
	return m, nil
}
