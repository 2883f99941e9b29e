package protocal

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"lingua-stream/configs"
	httpAdapter "lingua-stream/internal/adapters/input/http"

	swagger "github.com/arsmn/fiber-swagger/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	gormio "gorm.io/gorm"
)

type config struct {
	ENV string `mapstructure:"env"`
}

// ServeHTTP func
func ServeHTTP() error {
	var cfg config
	flag.StringVar(&cfg.ENV, "env", "", "the environment to use")
	flag.Parse()
	configs.InitViper("./configs", cfg.ENV)
	logrus.Info(configs.GetViper().Env)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Wire up the hexagonal architecture layers
	container, err := NewContainer(configs.GetViper(), reg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName: "lingua-stream",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept,Authorization",
	}))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range c {
			logrus.Println("Gracefull shut down ...")
			container.Close()
			err := app.Shutdown()
			if err != nil {
				logrus.Println("Error when shutdown server: ", err)
			}
		}
	}()

	var db *gormio.DB
	if container.DB != nil {
		db = container.DB.Gorm
	}
	// Input adapter (HTTP handler)
	hdl := httpAdapter.New(container.Registry, container.Library, container.Session, db)

	app.Get("/swagger/*", swagger.HandlerDefault) // default
	app.Get("/health", hdl.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	hdl.Register(app.Group("/v1/api"))

	logrus.Println("Listerning on port: ", configs.GetViper().App.Port)
	return app.Listen(":" + configs.GetViper().App.Port)
}
