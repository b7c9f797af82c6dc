package wikipedia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/FMUX/internal/domain"
	providerx "github.com/John-Robertt/FMUX/internal/provider"
)

// Provider 实现 Wikipedia 集数表（wikiepisodetable）的抓取与解析。
//
// Query.Show 是词条名（"List of Frieren: Beyond Journey's End episodes"
// 或直接剧名——集数表在正文里也能找到）。
type Provider struct{}

func (Provider) Name() string { return "wikipedia" }

func (Provider) Fetch(ctx context.Context, q providerx.Query, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	show := strings.TrimSpace(q.Show)
	if show == "" {
		return nil, "", errors.New("show 不能为空")
	}

	article := strings.ReplaceAll(show, " ", "_")
	pageURL := "https://en.wikipedia.org/wiki/" + url.PathEscape(article)
	b, err := fetchURL(ctx, c, pageURL)
	return b, pageURL, err
}

// 标题在 summary 单元格里带引号："A Real Hero"。
var quotedRE = regexp.MustCompile(`"([^"]+)"`)

func (Provider) Parse(q providerx.Query, html []byte, pageURL string) (domain.EpisodeMeta, error) {
	if len(html) == 0 {
		return domain.EpisodeMeta{}, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.EpisodeMeta{}, err
	}

	tables := doc.Find("table.wikiepisodetable")
	if tables.Length() == 0 {
		return domain.EpisodeMeta{}, errors.New("未找到集数表（词条里没有 wikiepisodetable）")
	}

	ep := strings.TrimSpace(q.Episode)
	title := ""
	tables.Find("tr.vevent").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		num := strings.TrimSpace(row.Find("th").First().Text())
		if num != ep && num != strings.TrimLeft(ep, "0") {
			return true
		}
		raw := strings.TrimSpace(row.Find("td.summary").First().Text())
		if m := quotedRE.FindStringSubmatch(raw); m != nil {
			title = normSpace(m[1])
		} else {
			title = normSpace(raw)
		}
		return false
	})
	if title == "" {
		return domain.EpisodeMeta{}, fmt.Errorf("集数表里没有第 %s 集", ep)
	}

	meta := domain.EpisodeMeta{
		Show:    q.Show,
		Episode: ep,
		Title:   title,
		Website: strings.TrimSpace(pageURL),
	}
	if src, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		meta.ThumbURL = strings.TrimSpace(src)
	}
	return meta, nil
}

func fetchURL(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerx.HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	if len(b) == 0 {
		return nil, errors.New("empty response body")
	}
	return b, nil
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
