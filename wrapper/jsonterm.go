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

package wrapper

import (
	"fmt"

	"etb/core"
)

// ToPlain converts a term to a plain Go value (string, int64, bool,
// []interface{}, a {"file":...,"sha1":...} map, a {"functor":...,"args":...}
// map for compounds, or a {"__Var":...} map for variables), suitable for
// handing to a scripted wrapper body (see interpreters/goja).
func ToPlain(t *core.Term) interface{} {
	switch t.Kind() {
	case core.KindVar:
		return map[string]interface{}{"__Var": t.VarName()}
	case core.KindConst:
		switch t.ConstKind() {
		case core.ConstString, core.ConstAtom:
			return t.StringVal()
		case core.ConstInt:
			return t.IntVal()
		case core.ConstBool:
			return t.BoolVal()
		}
		return nil
	case core.KindList:
		acc := make([]interface{}, len(t.ListElems()))
		for i, e := range t.ListElems() {
			acc[i] = ToPlain(e)
		}
		return acc
	case core.KindFileRef:
		return map[string]interface{}{"file": t.FilePath(), "sha1": t.FileSHA1()}
	case core.KindCompound:
		args := make([]interface{}, len(t.Args()))
		for i, a := range t.Args() {
			args[i] = ToPlain(a)
		}
		return map[string]interface{}{"functor": t.Functor(), "args": args}
	}
	return nil
}

// FromPlain converts a plain Go value back into a Term, used to interpret a
// scripted wrapper's returned substitutions. It inverts ToPlain for
// strings, numbers, booleans, lists and file references only: atoms come
// back as string constants, and compound and variable maps are rejected.
func FromPlain(v interface{}) (*core.Term, error) {
	switch vv := v.(type) {
	case string:
		return core.StringConst(vv), nil
	case bool:
		return core.BoolConst(vv), nil
	case int:
		return core.IntConst(int64(vv)), nil
	case int64:
		return core.IntConst(vv), nil
	case float64:
		return core.IntConst(int64(vv)), nil
	case []interface{}:
		elems := make([]*core.Term, len(vv))
		for i, e := range vv {
			ct, err := FromPlain(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ct
		}
		return core.List(elems...), nil
	case map[string]interface{}:
		if path, ok := vv["file"]; ok {
			sha1, _ := vv["sha1"].(string)
			p, _ := path.(string)
			return core.FileRef(p, sha1), nil
		}
		return nil, fmt.Errorf("cannot convert map to term: %v", vv)
	case nil:
		return nil, fmt.Errorf("cannot convert nil to term")
	default:
		return nil, fmt.Errorf("cannot convert %T to term", v)
	}
}
