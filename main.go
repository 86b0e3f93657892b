package main

import (
	"net/http"
	"os"

	"caseflow/account"
	"caseflow/bizerror"
	"caseflow/client/es"
	"caseflow/client/oss"
	"caseflow/common"
	"caseflow/domain/definition"
	"caseflow/domain/instance"
	"caseflow/domain/journal"
	"caseflow/domain/trigger"
	"caseflow/event"
	"caseflow/indices"
	"caseflow/indices/indexlog"
	"caseflow/infra/tracing"
	"caseflow/persistence"
	"caseflow/servehttp"
	"caseflow/session"
	"caseflow/sessions"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(nil).AutoMigrate(
		&instance.WorkflowInstance{}, &journal.JournalEntry{}, &trigger.DeferredTrigger{},
		&event.ChangeRecord{}, &indexlog.IndexLogRecord{},
		&account.User{}, &account.RoleBinding{},
	).Error
	if err != nil {
		logrus.Fatalf("database migration failed %v\n", err)
	}
	if err := account.DefaultSecurityConfiguration(); err != nil {
		logrus.Fatalf("security configuration failed %v\n", err)
	}

	// load workflow definitions
	definitionsDir := os.Getenv("DEFINITIONS_DIR")
	if definitionsDir == "" {
		definitionsDir = "definitions"
	}
	loader := definition.NewLoader(definition.NewDirSource(definitionsDir))
	if err := loader.Load(); err != nil {
		logrus.Fatalf("definition loading failed %v\n", err)
	}
	definition.ActiveLoader = loader
	logrus.Infof("loaded %d workflow definitions from %s", len(loader.Definitions), definitionsDir)

	closer, err := tracing.Bootstrap(common.GetServiceName())
	if err != nil {
		logrus.Fatalf("tracing bootstrap failed %v\n", err)
	}
	defer closer.Close()

	es.CreateClientFromEnv()
	oss.Bootstrap()

	event.ChangeHandlers = append(event.ChangeHandlers, indices.IndexInstanceChangeHandle)
	trigger.StartDeferredTriggerPump()
	indices.StartIndicesCron()

	engine := gin.Default()
	engine.Use(bizerror.ErrorHandling(), tracing.TracingIngress())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	sessions.RegisterSessionsHandler(engine)
	sessions.RegisterSessionHandler(engine, session.SimpleAuthFilter())

	account.RegisterUsersHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterDefinitionHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterInstanceHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterJournalHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterAttachmentHandler(engine, session.SimpleAuthFilter())
	indices.RegisterIndicesRestAPI(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}
