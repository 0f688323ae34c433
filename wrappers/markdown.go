/* Copyright 2018 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wrappers

import (
	"bytes"
	"context"
	"fmt"

	blackfriday "github.com/russross/blackfriday/v2"

	"etb/core"
	"etb/filestore"
	"etb/wrapper"
)

// RegisterMarkdown registers markdown(+title, +src, -html): a file-in/
// file-out wrapper that renders src's Markdown body to HTML and stores the
// result as a new file reference. This plays the role of the source's
// asciidoc wrapper in spec.md §8 scenario 5 (same file-qualified,
// cross-peer-fetchable shape); no AsciiDoc renderer exists anywhere in the
// retrieved example pack, so it renders Markdown with blackfriday/v2
// instead (see DESIGN.md).
func RegisterMarkdown(reg *wrapper.Registry, store *filestore.Store) {
	reg.Register(
		&wrapper.Signature{Name: "markdown", Args: []wrapper.ArgSpec{
			{Mode: wrapper.ModeIn, Kind: wrapper.KindValue},
			{Mode: wrapper.ModeIn, Kind: wrapper.KindFile},
			{Mode: wrapper.ModeOut, Kind: wrapper.KindFile},
		}},
		wrapper.ResolverFunc(func(ctx context.Context, lit *core.Literal) (wrapper.Outcome, error) {
			args := lit.Args()
			title, srcRef := args[0], args[1]
			if title.ConstKind() != core.ConstString && title.ConstKind() != core.ConstAtom {
				return wrapper.NewErrors("markdown: title must be a string"), nil
			}
			if !srcRef.IsFileRef() {
				return wrapper.NewErrors("markdown: src must be a file reference"), nil
			}
			body, err := store.ReadAll(srcRef)
			if err != nil {
				return wrapper.NewErrors(fmt.Sprintf("markdown: reading source: %s", err)), nil
			}
			html := blackfriday.Run(body)
			destPath := srcRef.FilePath() + ".html"
			ref, err := store.Put(destPath, bytes.NewReader(html))
			if err != nil {
				return wrapper.NewErrors(fmt.Sprintf("markdown: storing output: %s", err)), nil
			}
			resVar := args[2].VarName()
			return wrapper.NewSubstitutions([]core.Subst{
				core.NewSubst().Extend(resVar, ref),
			}), nil
		}),
	)
}
