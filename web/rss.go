package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/feeds"

	"github.com/okutkin/veche/db"
	"github.com/okutkin/veche/util"
)

// GetCommunityRSS renders the recent posts of a local community as an
// RSS feed
func GetCommunityRSS(conf *util.AppConfig, name string) (string, error) {
	database := db.GetDB()

	err, community := database.ReadCommunityByName(name)
	if err != nil || community == nil {
		return "", errors.New("community not found")
	}
	if community.Deleted || community.Removed {
		return "", errors.New("community is gone")
	}

	err, posts := database.ReadRecentPostsByCommunity(community.Id, 50)
	if err != nil || posts == nil {
		log.Printf("Could not get posts of %s: %v", name, err)
		return "", errors.New("error retrieving posts")
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - %s", community.Title, util.Name),
		Link:        &feeds.Link{Href: community.ActorURI},
		Description: community.Description,
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	for _, post := range *posts {
		if post.Deleted || post.Removed {
			continue
		}
		link := post.URL
		if link == "" {
			link = post.ObjectURI
		}
		feedItems = append(feedItems,
			&feeds.Item{
				Id:          post.ObjectURI,
				Title:       post.Title,
				Link:        &feeds.Link{Href: link},
				Description: post.Body,
				Author:      &feeds.Author{Name: post.CreatorURI},
				Created:     post.CreatedAt,
			})
	}
	feed.Items = feedItems

	rss, err := feed.ToRss()
	if err != nil {
		return "", err
	}
	return rss, nil
}
