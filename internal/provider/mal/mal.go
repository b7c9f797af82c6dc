package mal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/FMUX/internal/domain"
	providerx "github.com/John-Robertt/FMUX/internal/provider"
)

// Provider 实现 MyAnimeList 集数列表页的抓取与 HTML 解析。
//
// 约束：
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
// - Parse 必须是纯函数（依赖输入 html + pageURL）
// - Query.Show 是 MAL 的 anime 路径（"52991/Sousou_no_Frieren"）
type Provider struct{}

func (Provider) Name() string { return "mal" }

// Fetch 直接进入集数列表页：https://myanimelist.net/anime/<path>/episode
func (Provider) Fetch(ctx context.Context, q providerx.Query, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	path := strings.Trim(strings.TrimSpace(q.Show), "/")
	if path == "" {
		return nil, "", errors.New("show 不能为空")
	}

	pageURL := "https://myanimelist.net/anime/" + path + "/episode"
	b, err := fetchURL(ctx, c, pageURL)
	return b, pageURL, err
}

// Parse 在集数表里找 q.Episode 那一行，取标题。
func (Provider) Parse(q providerx.Query, html []byte, pageURL string) (domain.EpisodeMeta, error) {
	if len(html) == 0 {
		return domain.EpisodeMeta{}, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.EpisodeMeta{}, err
	}

	// 先校验“是不是集数列表页”（避免把拦截页当成成功解析）。
	table := doc.Find("table.episode_list")
	if table.Length() == 0 {
		return domain.EpisodeMeta{}, errors.New("未找到集数表（疑似返回了拦截页/非列表页内容）")
	}

	ep := strings.TrimSpace(q.Episode)
	title := ""
	table.Find("tr.episode-list-data").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		num := strings.TrimSpace(row.Find("td.episode-number").First().Text())
		if num != ep && num != strings.TrimLeft(ep, "0") {
			return true
		}
		title = normSpace(row.Find("td.episode-title a").First().Text())
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
	// og:image 是番剧主视觉图，够封面用。
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

	// MAL 的 CDN 在高频访问时返回 403/429；标记出来好让上层降级。
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &providerx.RateLimitedError{URL: u, StatusCode: resp.StatusCode}
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
