package web

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/okutkin/veche/activitypub"
	"github.com/okutkin/veche/util"
)

const apContentType = "application/activity+json; charset=utf-8"

// Router wires up and runs the HTTP surface: webfinger, the actor and
// object documents, the inboxes and the RSS feeds
func Router(conf *util.AppConfig, apCtx *activitypub.Context) error {
	log.Printf("Starting HTTP server on %s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	g.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"name":       util.Name,
			"version":    util.GetVersion(),
			"federation": conf.Conf.WithAp,
		})
	})

	// RSS feed per community
	g.GET("/feed/:community", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")

		rss, err := GetCommunityRSS(conf, c.Param("community"))
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	if conf.Conf.WithAp {
		// Stricter rate limit for ActivityPub endpoints: 5 req/sec per IP
		apLimiter := RateLimitMiddleware(NewRateLimiter(rate.Limit(5), 10))

		// Max 1MB request body size for ActivityPub activities
		maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024)

		g.GET("/.well-known/webfinger", func(c *gin.Context) {
			c.Header("Content-Type", "application/jrd+json; charset=utf-8")

			err, body := GetWebfinger(c.Query("resource"), conf)
			if err != nil {
				c.Render(404, render.String{Format: body})
			} else {
				c.Render(200, render.String{Format: body})
			}
		})

		g.GET("/users/:actor", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			err, actor := GetActor(c.Param("actor"), conf)
			if err != nil {
				c.Render(404, render.String{Format: actor})
			} else {
				c.Render(200, render.String{Format: actor})
			}
		})

		g.GET("/users/:actor/followers", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			err, body := GetFollowersCollection(apCtx.ActorURI(c.Param("actor")))
			if err != nil {
				c.Render(404, render.String{Format: "{}"})
			} else {
				c.Render(200, render.String{Format: body})
			}
		})

		g.GET("/users/:actor/outbox", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)
			c.Render(200, render.String{Format: emptyCollection(apCtx.ActorURI(c.Param("actor")) + "/outbox")})
		})

		g.GET("/c/:name", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			err, actor := GetCommunityActor(c.Param("name"), conf)
			if err != nil {
				c.Render(404, render.String{Format: actor})
			} else {
				c.Render(200, render.String{Format: actor})
			}
		})

		g.GET("/c/:name/followers", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			err, body := GetFollowersCollection(apCtx.CommunityURI(c.Param("name")))
			if err != nil {
				c.Render(404, render.String{Format: "{}"})
			} else {
				c.Render(200, render.String{Format: body})
			}
		})

		g.GET("/c/:name/outbox", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)
			c.Render(200, render.String{Format: emptyCollection(apCtx.CommunityURI(c.Param("name")) + "/outbox")})
		})

		g.GET("/c/:name/moderators", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)
			c.Render(200, render.String{Format: emptyCollection(apCtx.CommunityURI(c.Param("name")) + "/moderators")})
		})

		g.GET("/posts/:id", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			postId, err := uuid.Parse(c.Param("id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "Invalid post ID"})
				return
			}

			err, body, gone := GetPostObject(postId, conf)
			switch {
			case err != nil:
				c.JSON(404, gin.H{"error": "Post not found"})
			case gone:
				c.Render(http.StatusGone, render.String{Format: body})
			default:
				c.Render(200, render.String{Format: body})
			}
		})

		g.GET("/comments/:id", func(c *gin.Context) {
			c.Header("Content-Type", apContentType)

			commentId, err := uuid.Parse(c.Param("id"))
			if err != nil {
				c.JSON(404, gin.H{"error": "Invalid comment ID"})
				return
			}

			err, body, gone := GetCommentObject(commentId, conf)
			switch {
			case err != nil:
				c.JSON(404, gin.H{"error": "Comment not found"})
			case gone:
				c.Render(http.StatusGone, render.String{Format: body})
			default:
				c.Render(200, render.String{Format: body})
			}
		})

		inboxHandler := func(c *gin.Context) {
			body, err := c.GetRawData()
			if err != nil {
				log.Printf("Inbox: failed to read body: %v", err)
				c.Status(400)
				return
			}

			status, err := activitypub.HandleInbox(apCtx, c.Request, body)
			if err != nil {
				log.Printf("Inbox: %v", err)
			}
			c.Status(status)
		}

		// every inbox runs the same pipeline, routing happens by
		// activity addressing, not by URL
		g.POST("/inbox", apLimiter, maxBodySize, inboxHandler)
		g.POST("/users/:actor/inbox", apLimiter, maxBodySize, inboxHandler)
		g.POST("/c/:name/inbox", apLimiter, maxBodySize, inboxHandler)
	}

	return g.Run(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort))
}

func emptyCollection(id string) string {
	return fmt.Sprintf(`{"@context":"https://www.w3.org/ns/activitystreams","id":"%s","type":"OrderedCollection","totalItems":0,"orderedItems":[]}`, id)
}
