package compose

import (
	"strconv"
	"strings"

	"github.com/portabase/cli/cmd/portabase/cli/dbconfig"
)

// Engine is a database that can run as a local container next to an agent.
type Engine string

const (
	EnginePostgres    Engine = "postgresql"
	EngineMySQL       Engine = "mysql"
	EngineMariaDB     Engine = "mariadb"
	EngineMongoDBAuth Engine = "mongodb-auth"
	EngineMongoDB     Engine = "mongodb"
)

// Engines lists the local engines in prompt order.
var Engines = []Engine{EnginePostgres, EngineMySQL, EngineMariaDB, EngineMongoDBAuth, EngineMongoDB}

const postgresSnippet = `
  ${SERVICE_NAME}:
    container_name: ${PROJECT_NAME}-${SERVICE_NAME}
    image: postgres:17-alpine
    networks:
      - portabase
      - default
    ports:
      - "${PORT}:5432"
    volumes:
      - ${VOL_NAME}:/var/lib/postgresql/data
    environment:
      - POSTGRES_DB=${DB_NAME}
      - POSTGRES_USER=${USER}
      - POSTGRES_PASSWORD=${PASSWORD}
`

const mariadbSnippet = `
  ${SERVICE_NAME}:
    container_name: ${PROJECT_NAME}-${SERVICE_NAME}
    image: mariadb:latest
    ports:
      - "${PORT}:3306"
    environment:
      - MYSQL_DATABASE=${DB_NAME}
      - MYSQL_USER=${USER}
      - MYSQL_PASSWORD=${PASSWORD}
      - MYSQL_RANDOM_ROOT_PASSWORD=yes
    volumes:
      - ${VOL_NAME}:/var/lib/mysql
`

const mongoAuthSnippet = `
  ${SERVICE_NAME}:
    container_name: ${PROJECT_NAME}-${SERVICE_NAME}
    image: mongo:latest
    ports:
      - "${PORT}:27017"
    environment:
      - MONGO_INITDB_ROOT_USERNAME=${USER}
      - MONGO_INITDB_ROOT_PASSWORD=${PASSWORD}
      - MONGO_INITDB_DATABASE=${DB_NAME}
    command: mongod --auth
    volumes:
      - ${VOL_NAME}:/data/db
`

const mongoSnippet = `
  ${SERVICE_NAME}:
    container_name: ${PROJECT_NAME}-${SERVICE_NAME}
    image: mongo:latest
    ports:
      - "${PORT}:27017"
    environment:
      - MONGO_INITDB_DATABASE=${DB_NAME}
    volumes:
      - ${VOL_NAME}:/data/db
`

type engineSpec struct {
	snippet       string
	dbPrefix      string
	servicePrefix string
	dbType        string
	credentials   bool
}

func specFor(e Engine) engineSpec {
	switch e {
	case EngineMySQL, EngineMariaDB:
		return engineSpec{mariadbSnippet, "mysql_", "db-mariadb-", string(e), true}
	case EngineMongoDBAuth:
		return engineSpec{mongoAuthSnippet, "mongo_", "db-mongo-auth-", dbconfig.TypeMongoDB, true}
	case EngineMongoDB:
		return engineSpec{mongoSnippet, "mongo_", "db-mongo-", dbconfig.TypeMongoDB, false}
	default:
		return engineSpec{postgresSnippet, "pg_", "db-pg-", dbconfig.TypePostgres, true}
	}
}

// localUser is the account created in every local database container.
const localUser = "admin"

// LocalDatabase is a database container added to an agent stack.
type LocalDatabase struct {
	Engine      Engine
	ServiceName string
	Volume      string

	// Env holds the variables the snippet references, in write order.
	Env *Env

	// Snippet is the compose service definition, still containing
	// ${PROJECT_NAME}.
	Snippet string

	// Entry is the connection recorded in databases.json.
	Entry dbconfig.Database
}

// NewLocalDatabase generates names, a host port and credentials for a new
// container running engine.
func NewLocalDatabase(engine Engine, rnd Randomness) (*LocalDatabase, error) {
	spec := specFor(engine)

	port, err := rnd.FreePort()
	if err != nil {
		return nil, err
	}
	dbSuffix, err := rnd.Hex(4)
	if err != nil {
		return nil, err
	}
	svcSuffix, err := rnd.Hex(2)
	if err != nil {
		return nil, err
	}

	service := spec.servicePrefix + svcSuffix
	dbName := spec.dbPrefix + dbSuffix
	prefix := strings.ToUpper(strings.ReplaceAll(service, "-", "_"))

	env := NewEnv()
	env.Set(prefix+"_PORT", strconv.Itoa(port))
	env.Set(prefix+"_DB", dbName)

	entry := dbconfig.Database{
		Name:     dbName,
		Database: dbName,
		Type:     spec.dbType,
		Port:     port,
		Host:     "localhost",
	}

	if spec.credentials {
		password, err := rnd.Hex(8)
		if err != nil {
			return nil, err
		}
		env.Set(prefix+"_USER", localUser)
		env.Set(prefix+"_PASS", password)
		entry.Username = localUser
		entry.Password = password
	}

	volume := service + "-data"
	snippet := strings.NewReplacer(
		"${SERVICE_NAME}", service,
		"${PORT}", "${"+prefix+"_PORT}",
		"${VOL_NAME}", volume,
		"${DB_NAME}", "${"+prefix+"_DB}",
		"${USER}", "${"+prefix+"_USER}",
		"${PASSWORD}", "${"+prefix+"_PASS}",
	).Replace(spec.snippet)

	return &LocalDatabase{
		Engine:      engine,
		ServiceName: service,
		Volume:      volume,
		Env:         env,
		Snippet:     snippet,
		Entry:       entry,
	}, nil
}
