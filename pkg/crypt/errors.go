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

package crypt

import "fmt"

// ErrKeyFileNotFound means no keys are available, only encrypted xRIT files can be saved
type ErrKeyFileNotFound struct {
	Path string
}

func (e ErrKeyFileNotFound) Error() string {
	return fmt.Sprintf("Key file not found: %s", e.Path)
}

type ErrKeyFile struct {
	What string
}

func (e ErrKeyFile) Error() string {
	return fmt.Sprintf("Malformed key file: %s", e.What)
}
