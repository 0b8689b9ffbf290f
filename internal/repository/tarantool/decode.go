package tarantool

import (
	"fmt"
	"time"

	"github.com/jaam8/messenger_poll_bot/internal/models"
)

// decodePoll maps a polls tuple {id, question, options, created_at, expires_at} to a Poll.
func decodePoll(tuple []interface{}) (*models.Poll, error) {
	if len(tuple) < 5 {
		return nil, fmt.Errorf("repository: poll tuple has %d fields: %w", len(tuple), models.ErrFailedToProcessData)
	}
	id, ok := tuple[0].(string)
	if !ok {
		return nil, fmt.Errorf("repository: unexpected type for poll id: %w", models.ErrFailedToProcessData)
	}
	question, ok := tuple[1].(string)
	if !ok {
		return nil, fmt.Errorf("repository: unexpected type for poll question: %w", models.ErrFailedToProcessData)
	}
	optionsRaw, ok := convertKeys(tuple[2]).([]interface{})
	if !ok {
		return nil, fmt.Errorf("repository: unexpected type for poll options: %w", models.ErrFailedToProcessData)
	}
	options := make([]models.Option, 0, len(optionsRaw))
	for _, raw := range optionsRaw {
		option, err := decodeOption(raw)
		if err != nil {
			return nil, err
		}
		options = append(options, option)
	}
	createdAt, err := toInt64(tuple[3])
	if err != nil {
		return nil, err
	}
	expiresAt, err := toInt64(tuple[4])
	if err != nil {
		return nil, err
	}
	return &models.Poll{
		ID:        id,
		Question:  question,
		Options:   options,
		CreatedAt: time.UnixMilli(createdAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

func decodeOption(raw interface{}) (models.Option, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return models.Option{}, fmt.Errorf("repository: unexpected type for option: %w", models.ErrFailedToProcessData)
	}
	label, _ := m["label"].(string)
	option := models.Option{Label: label, Voters: []string{}}
	votersRaw, _ := m["voters"].([]interface{})
	for _, v := range votersRaw {
		voter, ok := v.(string)
		if !ok {
			return models.Option{}, fmt.Errorf("repository: unexpected type for voter: %w", models.ErrFailedToProcessData)
		}
		option.Voters = append(option.Voters, voter)
	}
	return option, nil
}

// convertKeys turns msgpack maps into string keyed maps, recursively.
func convertKeys(i interface{}) interface{} {
	switch x := i.(type) {
	case map[interface{}]interface{}:
		m2 := make(map[string]interface{})
		for k, v := range x {
			m2[fmt.Sprintf("%v", k)] = convertKeys(v)
		}
		return m2
	case map[string]interface{}:
		for k, v := range x {
			x[k] = convertKeys(v)
		}
		return x
	case []interface{}:
		for idx, item := range x {
			x[idx] = convertKeys(item)
		}
		return x
	default:
		return i
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("repository: unexpected numeric type %T: %w", v, models.ErrFailedToProcessData)
	}
}

// decodeIDs reads the single id list returned by verifiedScript.
func decodeIDs(data []interface{}) ([]string, error) {
	if len(data) == 0 {
		return nil, models.ErrFailedToProcessData
	}
	raw, ok := data[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("repository: unexpected type for id list: %w", models.ErrFailedToProcessData)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		id, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("repository: unexpected type for user id: %w", models.ErrFailedToProcessData)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
