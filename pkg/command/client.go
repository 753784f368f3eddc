/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package command

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-xrit/pkg/catalog"
	"jinr.ru/greenlab/go-xrit/pkg/config"
	"jinr.ru/greenlab/go-xrit/pkg/srv"
	"jinr.ru/greenlab/go-xrit/pkg/status"
)

// ApiClient talks to the dashboard API of a running receiver
type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	address := cfg.Dashboard.Address
	// a receiver bound to every interface is reached locally
	if address == "" || address == "0.0.0.0" || address == "::" {
		address = "127.0.0.1"
	}
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", address, cfg.Dashboard.Port),
	}
}

func (c *ApiClient) get(path string, v interface{}, params ...interface{}) (bool, error) {
	r, err := req.Get(c.ApiPrefix+path, params...)
	if err != nil {
		return false, err
	}
	switch r.Response().StatusCode {
	case 200:
	case 404:
		return false, nil
	default:
		return false, errors.New(r.Response().Status)
	}
	if err := r.ToJSON(v); err != nil {
		return false, err
	}
	return true, nil
}

// Info gets the configuration summary of the receiver
func (c *ApiClient) Info() (*srv.Info, error) {
	info := &srv.Info{}
	if _, err := c.get("", info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *ApiClient) Stats() (*srv.Stats, error) {
	stats := &srv.Stats{}
	if _, err := c.get("/stats", stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Progress lists the products being reassembled, ordered by virtual channel
func (c *ApiClient) Progress() ([]status.Progress, error) {
	var progress []status.Progress
	if _, err := c.get("/current/progress", &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// Latest gets the newest image of a category, or of any category when category is empty.
// It returns nil when no image was received yet.
func (c *ApiClient) Latest(category string) (*status.Image, error) {
	path := "/latest"
	if category != "" {
		path += "/" + url.PathEscape(category)
	}
	img := &status.Image{}
	found, err := c.get(path, img)
	if err != nil || !found {
		return nil, err
	}
	return img, nil
}

// LatestFile gets the newest xRIT file, nil when none was written yet
func (c *ApiClient) LatestFile() (*status.File, error) {
	f := &status.File{}
	found, err := c.get("/latest/xrit", f)
	if err != nil || !found {
		return nil, err
	}
	return f, nil
}

// Products lists catalog records of a category, newest first
func (c *ApiClient) Products(category string, limit int) ([]*catalog.Record, error) {
	var records []*catalog.Record
	found, err := c.get("/products/"+url.PathEscape(category), &records, req.QueryParam{"limit": limit})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrUnknownCategory{Category: category}
	}
	return records, nil
}
