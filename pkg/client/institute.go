package client

import (
	"context"
	"net/url"
	"strconv"

	"freezefit/pkg/model"
)

type InstituteClient struct {
	http *HttpClient
}

func (c *InstituteClient) Search(ctx context.Context, search *model.InstituteSearch) ([]*model.Institute, *Meta, error) {
	q := url.Values{}
	setString(q, "q", search.Query)
	setString(q, "city", search.City)
	setString(q, "amenity", search.Amenity)
	setString(q, "sort", search.Sort)
	setFloat(q, "min_rating", search.MinRating)
	setFloat(q, "lat", search.Latitude)
	setFloat(q, "lng", search.Longitude)
	setFloat(q, "radius_km", search.RadiusKM)
	if search.Limit > 0 {
		q.Set("limit", strconv.Itoa(search.Limit))
	}
	if search.Offset > 0 {
		q.Set("offset", strconv.Itoa(search.Offset))
	}

	path := "/api/v1/institutes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var institutes []*model.Institute
	meta, err := c.http.Get(ctx, path, &institutes)
	if err != nil {
		return nil, nil, err
	}
	return institutes, meta, nil
}

func (c *InstituteClient) Get(ctx context.Context, id string) (*model.Institute, error) {
	var institute model.Institute
	if _, err := c.http.Get(ctx, "/api/v1/institutes/"+url.PathEscape(id), &institute); err != nil {
		return nil, err
	}
	return &institute, nil
}

func (c *InstituteClient) Create(ctx context.Context, institute *model.Institute) (*model.Institute, error) {
	var created model.Institute
	if err := c.http.Post(ctx, "/api/v1/institutes", institute, &created, "/api/v1/providers/me"); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *InstituteClient) Update(ctx context.Context, id string, updates *model.InstituteUpdate) (*model.Institute, error) {
	var updated model.Institute
	if err := c.http.Patch(ctx, "/api/v1/institutes/"+url.PathEscape(id), updates, &updated, "/api/v1/providers/me"); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *InstituteClient) Reviews(ctx context.Context, id, sort string, limit, offset int) ([]*model.Review, *Meta, error) {
	q := url.Values{}
	setString(q, "sort", sort)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	var reviews []*model.Review
	meta, err := c.http.Get(ctx, "/api/v1/institutes/"+url.PathEscape(id)+"/reviews?"+q.Encode(), &reviews)
	if err != nil {
		return nil, nil, err
	}
	return reviews, meta, nil
}

// CreateReview posts a review. The institute's cached rating is dropped with
// the rest of the institute collection.
func (c *InstituteClient) CreateReview(ctx context.Context, id string, review *model.ReviewCreate) (*model.Review, error) {
	var created model.Review
	if err := c.http.Post(ctx, "/api/v1/institutes/"+url.PathEscape(id)+"/reviews", review, &created, "/api/v1/users/me/loyalty"); err != nil {
		return nil, err
	}
	return &created, nil
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setFloat(q url.Values, key string, value *float64) {
	if value != nil {
		q.Set(key, strconv.FormatFloat(*value, 'f', -1, 64))
	}
}
