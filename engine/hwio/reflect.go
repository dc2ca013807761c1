package hwio

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type bankRegInfo struct {
	regPtr any
	offset uint32
}

type regTag struct {
	offset    uint32
	hasOffset bool
	bank      int
	reset     uint64
	rwmask    uint64
	hasRwmask bool
	rcb       bool
	wcb       bool
	readonly  bool
	writeonly bool
}

func parseRegTag(tag string) (regTag, error) {
	var rt regTag
	for _, opt := range strings.Split(tag, ",") {
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "offset":
			n, err := strconv.ParseUint(val, 0, 32)
			if err != nil {
				return rt, fmt.Errorf("invalid offset %q: %w", val, err)
			}
			rt.offset = uint32(n)
			rt.hasOffset = true
		case "bank":
			n, err := strconv.Atoi(val)
			if err != nil {
				return rt, fmt.Errorf("invalid bank %q: %w", val, err)
			}
			rt.bank = n
		case "reset":
			n, err := strconv.ParseUint(val, 0, 64)
			if err != nil {
				return rt, fmt.Errorf("invalid reset %q: %w", val, err)
			}
			rt.reset = n
		case "rwmask":
			n, err := strconv.ParseUint(val, 0, 64)
			if err != nil {
				return rt, fmt.Errorf("invalid rwmask %q: %w", val, err)
			}
			rt.rwmask = n
			rt.hasRwmask = true
		case "rcb":
			rt.rcb = true
		case "wcb":
			rt.wcb = true
		case "readonly":
			rt.readonly = true
		case "writeonly":
			rt.writeonly = true
		case "":
		default:
			if hasVal {
				return rt, fmt.Errorf("unknown hwio tag option %q", key)
			}
			return rt, fmt.Errorf("unknown hwio tag option %q", opt)
		}
	}
	return rt, nil
}

// InitRegs initializes all Reg32 fields of a register bank structure
// from their "hwio" struct tags: name, reset value, read/write mask,
// read/write callbacks (methods named Read<FIELD>/Write<FIELD> with the
// field name uppercased), and access flags.
func InitRegs(bank any) error {
	v := reflect.ValueOf(bank)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bank must be a pointer to struct, got %T", bank)
	}
	sv := v.Elem()
	st := sv.Type()

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if field.Type != reflect.TypeOf(Reg32{}) {
			continue
		}
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseRegTag(tag)
		if err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}

		if rt.reset > 0xFFFFFFFF {
			return fmt.Errorf("field %s: reset value %x does not fit in 32 bits", field.Name, rt.reset)
		}
		if rt.rwmask > 0xFFFFFFFF {
			return fmt.Errorf("field %s: rwmask %x does not fit in 32 bits", field.Name, rt.rwmask)
		}

		reg := sv.Field(i).Addr().Interface().(*Reg32)
		reg.Name = field.Name
		reg.Value = uint32(rt.reset)
		if rt.hasRwmask {
			// rwmask lists the writable bits; RoMask is its complement.
			reg.RoMask = ^uint32(rt.rwmask)
		}
		if rt.readonly {
			reg.Flags |= RegFlagReadOnly
		}
		if rt.writeonly {
			reg.Flags |= RegFlagWriteOnly
		}

		upper := strings.ToUpper(field.Name)
		if rt.wcb {
			m := v.MethodByName("Write" + upper)
			if !m.IsValid() {
				return fmt.Errorf("field %s: missing method Write%s", field.Name, upper)
			}
			reg.WriteCb = m.Interface().(func(old, val uint32))
		}
		if rt.rcb {
			m := v.MethodByName("Read" + upper)
			if !m.IsValid() {
				return fmt.Errorf("field %s: missing method Read%s", field.Name, upper)
			}
			reg.ReadCb = m.Interface().(func(val uint32) uint32)
		}
	}
	return nil
}

// bankGetRegs collects the mappable fields (Reg32 or Mem) of the given
// bank number, in declaration order.
func bankGetRegs(bank any, bankNum int) ([]bankRegInfo, error) {
	v := reflect.ValueOf(bank)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("bank must be a pointer to struct, got %T", bank)
	}
	sv := v.Elem()
	st := sv.Type()

	var regs []bankRegInfo
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("hwio")
		if !ok {
			continue
		}
		rt, err := parseRegTag(tag)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if !rt.hasOffset || rt.bank != bankNum {
			continue
		}

		switch field.Type {
		case reflect.TypeOf(Reg32{}), reflect.TypeOf(Mem{}):
			regs = append(regs, bankRegInfo{
				regPtr: sv.Field(i).Addr().Interface(),
				offset: rt.offset,
			})
		default:
			return nil, fmt.Errorf("field %s: type %s is not mappable", field.Name, field.Type)
		}
	}
	return regs, nil
}
