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

package catalog

import (
	"fmt"
)

// ErrBucketNotFound returned for categories without a bucket
type ErrBucketNotFound struct {
	Category string
}

func (e ErrBucketNotFound) Error() string {
	return fmt.Sprintf("Bucket not found: %s", bucketName(e.Category))
}

// ErrRecord returned when a stored record can not be decoded
type ErrRecord struct {
	Key string
	Err error
}

func (e ErrRecord) Error() string {
	return fmt.Sprintf("Malformed catalog record %s: %s", e.Key, e.Err)
}

func (e ErrRecord) Unwrap() error {
	return e.Err
}
