package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	// ErrIncompleteDataSource is returned when the url, username or password
	// of the data source is blank. No connection is attempted.
	ErrIncompleteDataSource = errors.New("data source url, username and password are required")
	// ErrUnsupportedURL is returned for JDBC urls of an unknown database.
	ErrUnsupportedURL = errors.New("unsupported jdbc url")
)

// DefaultDataSource is the data source name used by the shipped templates.
const DefaultDataSource = "datasource1"

const (
	jdbcURLKey      = "jdbc.url"
	jdbcUserKey     = "jdbc.username"
	jdbcPasswordKey = "jdbc.password"
	jdbcPrefix      = "jdbc:"
)

// PropertySource is the read side of a properties snapshot.
type PropertySource interface {
	Get(key string) string
}

// DataSource holds the JDBC settings of one named data source.
type DataSource struct {
	Name     string
	URL      string
	Username string
	Password string
}

// DataSourceFrom reads "<name>.jdbc.url", "<name>.jdbc.username" and
// "<name>.jdbc.password" from props.
func DataSourceFrom(props PropertySource, name string) DataSource {
	return DataSource{
		Name:     name,
		URL:      props.Get(name + "." + jdbcURLKey),
		Username: props.Get(name + "." + jdbcUserKey),
		Password: props.Get(name + "." + jdbcPasswordKey),
	}
}

// Complete reports whether url, username and password are all non-blank.
func (d DataSource) Complete() bool {
	return strings.TrimSpace(d.URL) != "" &&
		strings.TrimSpace(d.Username) != "" &&
		strings.TrimSpace(d.Password) != ""
}

// Target is a database/sql driver name and DSN.
type Target struct {
	Driver string
	DSN    string
}

// ResolveTarget converts the JDBC url of d into a database/sql target.
// jdbc:mysql:// urls use go-sql-driver/mysql, jdbc:postgresql:// urls use
// lib/pq.
func ResolveTarget(d DataSource) (Target, error) {
	raw := strings.TrimSpace(d.URL)
	if !strings.HasPrefix(raw, jdbcPrefix) {
		return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}

	u, err := url.Parse(strings.TrimPrefix(raw, jdbcPrefix))
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: missing host in %q", ErrUnsupportedURL, raw)
	}

	switch u.Scheme {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = d.Username
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		// JDBC-only parameters are dropped; the driver would send unknown
		// parameters to the server as session variables.
		return Target{Driver: "mysql", DSN: cfg.FormatDSN()}, nil
	case "postgresql", "postgres":
		pg := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.Username, d.Password),
			Host:     u.Host,
			Path:     u.Path,
			RawQuery: u.RawQuery,
		}
		return Target{Driver: "postgres", DSN: pg.String()}, nil
	default:
		return Target{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
}

// Connector opens a single live connection to target.
type Connector interface {
	Connect(ctx context.Context, target Target) (io.Closer, error)
}

// SQLConnector connects through database/sql.
type SQLConnector struct{}

// Connect opens a pool for target and takes one connection from it. Closing
// the result releases the connection and the pool.
func (SQLConnector) Connect(ctx context.Context, target Target) (io.Closer, error) {
	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target.Driver, err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", target.Driver, err)
	}
	return &sqlConn{conn: conn, db: db}, nil
}

type sqlConn struct {
	conn *sql.Conn
	db   *sql.DB
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// Database probes a relational database.
type Database struct {
	connector  Connector
	dataSource string
	logger     *zap.Logger
}

// DatabaseOption configures a Database probe.
type DatabaseOption func(*Database)

// WithConnector replaces the database/sql connector.
func WithConnector(connector Connector) DatabaseOption {
	return func(d *Database) {
		d.connector = connector
	}
}

// WithDataSource selects the data source name read from the properties.
func WithDataSource(name string) DatabaseOption {
	return func(d *Database) {
		d.dataSource = name
	}
}

// WithDatabaseLogger sets the probe logger.
func WithDatabaseLogger(logger *zap.Logger) DatabaseOption {
	return func(d *Database) {
		d.logger = logger
	}
}

// NewDatabase returns a Database probe using SQLConnector and
// DefaultDataSource unless overridden.
func NewDatabase(opts ...DatabaseOption) *Database {
	d := &Database{
		connector:  SQLConnector{},
		dataSource: DefaultDataSource,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check connects to the data source described by props and closes the
// connection again.
func (d *Database) Check(ctx context.Context, props PropertySource) error {
	ds := DataSourceFrom(props, d.dataSource)
	if !ds.Complete() {
		return fmt.Errorf("%w: %s", ErrIncompleteDataSource, ds.Name)
	}

	target, err := ResolveTarget(ds)
	if err != nil {
		return err
	}

	conn, err := d.connector.Connect(ctx, target)
	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("connect %s: no connection returned", target.Driver)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			d.logger.Error("closing database connection failed", zap.Error(closeErr))
		}
	}()

	d.logger.Info("database reachable", zap.String("driver", target.Driver), zap.String("data_source", ds.Name))
	return nil
}
