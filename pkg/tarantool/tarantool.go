package tarantool

import (
	"fmt"
	"time"

	"github.com/tarantool/go-tarantool"
)

type Config struct {
	Host     string        `yaml:"TARANTOOL_HOST"     env:"TARANTOOL_HOST"     env-default:"localhost"`
	Port     string        `yaml:"TARANTOOL_PORT"     env:"TARANTOOL_PORT"     env-default:"3301"`
	Username string        `yaml:"TARANTOOL_USER"     env:"TARANTOOL_USER"     env-default:"admin"`
	Password string        `yaml:"TARANTOOL_PASSWORD" env:"TARANTOOL_PASSWORD" env-default:"secret"`
	Timeout  time.Duration `yaml:"TARANTOOL_TIMEOUT"  env:"TARANTOOL_TIMEOUT"  env-default:"5s"`
}

func New(config Config) (*tarantool.Connection, error) {
	conn, err := tarantool.Connect(config.Host+":"+config.Port, tarantool.Opts{
		User:    config.Username,
		Pass:    config.Password,
		Timeout: config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("tarantool: connect: %w", err)
	}
	return conn, nil
}

// schema creates the users and polls spaces when they are missing.
const schema = `
box.schema.space.create('users', {
    if_not_exists = true,
    format = {
        {name = 'id', type = 'string'},
        {name = 'verified', type = 'boolean'},
        {name = 'lab', type = 'unsigned'},
        {name = 'cwi', type = 'unsigned'},
        {name = 'created_at', type = 'unsigned'},
    },
})
box.space.users:create_index('primary', {parts = {'id'}, if_not_exists = true})
box.space.users:create_index('verified', {parts = {'verified'}, unique = false, if_not_exists = true})

box.schema.space.create('polls', {
    if_not_exists = true,
    format = {
        {name = 'id', type = 'string'},
        {name = 'question', type = 'string'},
        {name = 'options', type = 'array'},
        {name = 'created_at', type = 'unsigned'},
        {name = 'expires_at', type = 'unsigned'},
    },
})
box.space.polls:create_index('primary', {parts = {'id'}, if_not_exists = true})
return true
`

// Bootstrap makes sure the spaces used by the bot exist.
func Bootstrap(conn *tarantool.Connection) error {
	if _, err := conn.Eval(schema, []interface{}{}); err != nil {
		return fmt.Errorf("tarantool: bootstrap schema: %w", err)
	}
	return nil
}
