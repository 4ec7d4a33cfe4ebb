package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/okutkin/veche/activitypub"
	"github.com/okutkin/veche/db"
	"github.com/okutkin/veche/util"
	"github.com/okutkin/veche/web"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	util.GeneratePemKeypair()

	log.Println("Running database migrations...")
	database := db.GetDB()
	if err := database.RunMigrations(); err != nil {
		log.Printf("Warning: Migration errors (may be normal if tables exist): %v", err)
	}
	log.Println("Database migrations complete")

	apCtx := activitypub.NewContext(conf, database)

	if conf.Conf.WithAp {
		if conf.Conf.Queue.Backend == "redis" {
			rq, err := activitypub.NewRedisQueue(
				conf.Conf.Queue.RedisAddr,
				conf.Conf.Queue.RedisPassword,
				conf.Conf.Queue.RedisDb,
				util.Name+":delivery",
			)
			if err != nil {
				log.Fatalln("Could not connect to redis:", err)
			}
			apCtx.Queue.SetBackend(rq)
		}
		apCtx.Queue.StartWorkers()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := web.Router(conf, apCtx); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping delivery workers")
	apCtx.Queue.Stop()
}
