package apiclient

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pyresume/dashclient/internal/domain"
)

// SelfInfo is the signed-in account.
type SelfInfo struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Funnel counts applications that reached each hiring stage.
type Funnel struct {
	TotalApplications int `json:"total_applications"`
	PassedScreening   int `json:"passed_screening"`
	PassedAssessment  int `json:"passed_assessment"`
	PassedInterview   int `json:"passed_interview"`
	Hired             int `json:"hired"`
}

// Stats is the dashboard summary.
type Stats struct {
	StatusCounts       map[string]int `json:"status_counts"`
	FunnelStats        Funnel         `json:"funnel_stats"`
	RecentApplications []Application  `json:"recent_applications"`
}

// Company is a tracked employer and the candidate's portal login for it.
type Company struct {
	ID          int    `json:"id"`
	CompanyName string `json:"company_name"`
	WebsiteLink string `json:"website_link"`
	LoginType   string `json:"login_type"`
	Username    string `json:"uname"`
	Password    string `json:"upass"`
	CreatedAt   string `json:"created_at"`
}

// CompanyRef is the short company form embedded in an Application.
type CompanyRef struct {
	ID          int    `json:"id"`
	CompanyName string `json:"company_name"`
}

// Application is one job application.
type Application struct {
	ID        int         `json:"id"`
	Position  string      `json:"position"`
	Base      string      `json:"base"`
	Salary    string      `json:"salery"`
	Status    string      `json:"status"`
	Resume    string      `json:"resume"`
	UpdatedAt string      `json:"update_at"`
	CreatedAt string      `json:"created_at"`
	Company   *CompanyRef `json:"company"`
}

// ListOptions filters and pages a list call. Zero values use server defaults.
type ListOptions struct {
	Search   string
	Page     int
	PageSize int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return q
}

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items       []T
	Count       int
	TotalPages  int
	CurrentPage int
}

type pager interface {
	setPagination(count, totalPages, currentPage int)
	itemsTarget() any
}

func (p *Page[T]) setPagination(count, totalPages, currentPage int) {
	p.Count, p.TotalPages, p.CurrentPage = count, totalPages, currentPage
}

func (p *Page[T]) itemsTarget() any {
	return &p.Items
}

// SelfInfo returns the signed-in account.
func (c *Client) SelfInfo(ctx context.Context) (SelfInfo, error) {
	var info SelfInfo
	err := c.GetJSON(ctx, domain.PathSelfInfo, nil, &info)
	return info, err
}

// DashboardStats returns the dashboard summary.
func (c *Client) DashboardStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.GetJSON(ctx, domain.PathDashboardStats, nil, &stats)
	return stats, err
}

// Companies lists tracked companies.
func (c *Client) Companies(ctx context.Context, opts ListOptions) (Page[Company], error) {
	var page Page[Company]
	err := c.GetJSON(ctx, domain.PathCompanies, opts.query(), &page)
	return page, err
}

// Applications lists job applications, newest first.
func (c *Client) Applications(ctx context.Context, opts ListOptions) (Page[Application], error) {
	var page Page[Application]
	err := c.GetJSON(ctx, domain.PathApplications, opts.query(), &page)
	return page, err
}
